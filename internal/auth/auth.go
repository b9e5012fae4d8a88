// Package auth guards the controller's mutating HTTP routes with a shared
// bearer token.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator checks a bearer token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one token. An empty Token accepts nothing.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Require rejects requests whose method is in methods unless v accepts their
// bearer token. A nil v lets everything through.
func Require(v Validator, methods ...string) gin.HandlerFunc {
	guarded := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		guarded[strings.ToUpper(m)] = struct{}{}
	}
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		if _, ok := guarded[c.Request.Method]; !ok {
			c.Next()
			return
		}
		if err := v.Validate(BearerToken(c.Request)); err != nil {
			log.Warn().Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("rejected unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}
