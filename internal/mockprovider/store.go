package mockprovider

import (
	"sync"
	"time"

	"github.com/wrale/oauth2-device-client/internal/validation"
)

type grantStatus int

const (
	statusPending grantStatus = iota
	statusApproved
	statusDenied
)

// grant tracks one device authorization from issue until its token is collected
type grant struct {
	DeviceCode string
	UserCode   string
	ClientID   string
	Scope      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastPoll   time.Time
	Status     grantStatus
}

type refreshGrant struct {
	ClientID string
	Scope    string
}

// memoryStore keeps grants and refresh tokens in memory
type memoryStore struct {
	mu        sync.Mutex
	grants    map[string]*grant // device code -> grant
	userCodes map[string]string // normalized user code -> device code
	refresh   map[string]refreshGrant
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		grants:    make(map[string]*grant),
		userCodes: make(map[string]string),
		refresh:   make(map[string]refreshGrant),
	}
}

func (s *memoryStore) saveGrant(g *grant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.DeviceCode] = g
	s.userCodes[validation.NormalizeCode(g.UserCode)] = g.DeviceCode
}

// withGrant runs fn on the grant for deviceCode while holding the lock.
// fn receives nil when the code is unknown.
func (s *memoryStore) withGrant(deviceCode string, fn func(g *grant)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.grants[deviceCode])
}

// withGrantByUserCode is withGrant keyed by user code
func (s *memoryStore) withGrantByUserCode(userCode string, fn func(g *grant)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deviceCode, ok := s.userCodes[validation.NormalizeCode(userCode)]
	if !ok {
		fn(nil)
		return
	}
	fn(s.grants[deviceCode])
}

// deleteGrantLocked removes a grant; the caller holds the lock
func (s *memoryStore) deleteGrantLocked(g *grant) {
	delete(s.grants, g.DeviceCode)
	delete(s.userCodes, validation.NormalizeCode(g.UserCode))
}

func (s *memoryStore) saveRefreshToken(token string, rg refreshGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token] = rg
}

func (s *memoryStore) lookupRefreshToken(token string) (refreshGrant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rg, ok := s.refresh[token]
	return rg, ok
}

func (s *memoryStore) rotateRefreshToken(oldToken, newToken string, rg refreshGrant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, oldToken)
	s.refresh[newToken] = rg
}
