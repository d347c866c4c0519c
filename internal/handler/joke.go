package handler

import (
	"math/rand"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Serves a random joke. It exists as the demonstration resource behind
// the authentication and admission chain.
type JokeHandler struct {
	jokes []string
}

func NewJokeHandler() *JokeHandler {
	return &JokeHandler{
		jokes: []string{
			"I told my computer I needed a break, and now it won't stop sending me Kit-Kats.",
			"Why do programmers prefer dark mode? Because light attracts bugs.",
			"There are 10 types of people: those who understand binary and those who don't.",
			"A SQL query walks into a bar, walks up to two tables and asks: may I join you?",
			"Why did the developer go broke? Because he used up all his cache.",
			"I would tell you a UDP joke, but you might not get it.",
			"To understand recursion you must first understand recursion.",
			"The best thing about a boolean is that even if you are wrong, you are only off by a bit.",
		},
	}
}

// Handles GET /api/joke
func (h *JokeHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"joke": h.jokes[rand.Intn(len(h.jokes))],
	})
}
