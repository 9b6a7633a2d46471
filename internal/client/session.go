// Package client is the storefront's customer-side SDK: REST calls, the
// local cart model with debounced quantity edits, order composition and the
// card payment flow.
package client

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

// Session holds the caller's identity. It is passed explicitly to every
// component that needs it.
type Session struct {
	BaseURL string
	HTTP    *http.Client

	mu    sync.RWMutex
	token string
	user  *domain.User
}

func NewSession(baseURL string) *Session {
	return &Session{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *Session) SetAuth(token string, user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = user
}

func (s *Session) Clear() {
	s.SetAuth("", nil)
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}
