package proxy

import (
	"errors"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quotagate/quotagate/internal/circuitbreaker"
)

// Forwards requests to one of a service's upstream targets, selected
// round-robin. Each target carries its own circuit breaker so one
// failing replica does not take the whole service offline.
type Proxy struct {
	targets []*target
	next    atomic.Uint64
}

type target struct {
	url     *url.URL
	reverse *httputil.ReverseProxy
	breaker *circuitbreaker.Breaker
}

func New(targetURLs []string) (*Proxy, error) {
	if len(targetURLs) == 0 {
		return nil, errors.New("at least one target is required")
	}

	targets := make([]*target, 0, len(targetURLs))
	for _, raw := range targetURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, err
		}

		targets = append(targets, &target{
			url:     parsed,
			reverse: httputil.NewSingleHostReverseProxy(parsed),
			breaker: circuitbreaker.New(5, 30*time.Second),
		})
	}

	return &Proxy{targets: targets}, nil
}

// Forwards the request to the next available upstream target. Targets
// whose breaker is open are skipped; if every breaker is open the
// request fails fast with 503.
func (p *Proxy) Handle(c *gin.Context) {
	for range p.targets {
		t := p.targets[p.next.Add(1)%uint64(len(p.targets))]

		err := t.breaker.Do(func() error {
			return p.forward(c, t)
		})
		if err == nil {
			return
		}
		if errors.Is(err, circuitbreaker.ErrOpen) {
			continue
		}

		log.Printf("Upstream %s failed: %v", t.url, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"status":      http.StatusText(http.StatusBadGateway),
			"description": "Upstream service error",
		})
		return
	}

	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":      http.StatusText(http.StatusServiceUnavailable),
		"description": "No upstream targets available",
	})
}

func (p *Proxy) forward(c *gin.Context, t *target) error {
	recorder := &statusRecorder{ResponseWriter: c.Writer, statusCode: http.StatusOK}

	req := c.Request
	req.Header.Set("X-Forwarded-Host", req.Host)
	if clientIP := c.ClientIP(); clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}

	t.reverse.ServeHTTP(recorder, req)

	if recorder.statusCode >= 500 {
		return errors.New("upstream returned 5xx")
	}

	return nil
}

// Returns the breaker state per target, for the health endpoint
func (p *Proxy) BreakerStates() map[string]string {
	states := make(map[string]string, len(p.targets))
	for _, t := range p.targets {
		states[t.url.String()] = t.breaker.State().String()
	}

	return states
}

// Captures the response status code
type statusRecorder struct {
	gin.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
