package services

import (
	"strings"
	"sync"

	"github.com/dmitrijs2005/promptvault/internal/common"
)

// Session describes who is using the catalog and whether the remote
// snapshot store may be used.
//
// A privileged session writes the primary snapshot. Any other session writes
// its own suggestion copy so the shared database is never overwritten.
type Session struct {
	mu         sync.RWMutex
	user       string
	token      string
	privileged bool
	online     bool
}

func NewSession(user, token string, privileged bool) *Session {
	return &Session{user: strings.TrimSpace(user), token: token, privileged: privileged, online: true}
}

func (s *Session) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == "" {
		return "anonymous"
	}
	return s.user
}

func (s *Session) Privileged() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.privileged
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// Authorized reports whether a remote access token is present.
func (s *Session) Authorized() bool {
	return s.Token() != ""
}

func (s *Session) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// SetOnline records reachability and reports whether it changed.
func (s *Session) SetOnline(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.online != online
	s.online = online
	return changed
}

// CloudEnabled reports whether writes should also go to the remote store.
func (s *Session) CloudEnabled() bool {
	return s.Authorized() && s.Online()
}

// RemotePath is the snapshot path this session writes to.
func (s *Session) RemotePath() string {
	if s.Privileged() {
		return common.PrimaryPath
	}
	return common.SuggestionPath(s.User())
}
