package server

import (
	"github.com/gin-gonic/gin"
)

// Declares how a route participates in the authentication and
// admission chain. The table is resolved once at startup; no handler
// metadata is inspected at request time.
type RoutePolicy struct {
	Method       string
	Path         string
	RequiresAuth bool
	RateLimited  bool
	Handler      gin.HandlerFunc
}

// The gateway's own API surface. Plan updates are authenticated but
// quota-exempt: switching plans must not consume quota from the plan
// being abandoned.
func (s *Server) routes() []RoutePolicy {
	return []RoutePolicy{
		{Method: "POST", Path: "/api/users", Handler: s.authHandler.Register},
		{Method: "POST", Path: "/api/auth/login", Handler: s.authHandler.Login},
		{Method: "GET", Path: "/api/plans", Handler: s.planHandler.List},
		{Method: "PUT", Path: "/api/plans", RequiresAuth: true, Handler: s.planHandler.Update},
		{Method: "GET", Path: "/api/plans/history", RequiresAuth: true, Handler: s.planHandler.History},
		{Method: "GET", Path: "/api/joke", RequiresAuth: true, RateLimited: true, Handler: s.jokeHandler.Get},
		{Method: "GET", Path: "/api/analytics/summary", RequiresAuth: true, Handler: s.analyticsHandler.GetSummary},
		{Method: "GET", Path: "/health", Handler: s.healthCheck},
	}
}

func (s *Server) register(policy RoutePolicy) {
	handlers := s.chainFor(policy)
	s.router.Handle(policy.Method, policy.Path, handlers...)
}

func (s *Server) registerAny(policy RoutePolicy) {
	handlers := s.chainFor(policy)
	s.router.Any(policy.Path, handlers...)
}

// Builds the middleware chain a route's policy asks for. Admission
// always runs after authentication so the principal is known.
func (s *Server) chainFor(policy RoutePolicy) []gin.HandlerFunc {
	var handlers []gin.HandlerFunc

	if policy.RequiresAuth {
		handlers = append(handlers, s.requireAuth)
	}
	if policy.RateLimited {
		handlers = append(handlers, s.rateLimit)
	}

	return append(handlers, policy.Handler)
}
