package app

import "sync"

// Identity tracks the authenticated user for the session. It implements
// telemetry.IdentityProvider; an empty id means unauthenticated.
type Identity struct {
	mu     sync.RWMutex
	userID string
}

// NewIdentity creates an unauthenticated Identity.
func NewIdentity() *Identity {
	return &Identity{}
}

// CurrentUserID returns the authenticated user id, or "".
func (i *Identity) CurrentUserID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.userID
}

// SetUser records a login.
func (i *Identity) SetUser(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userID = userID
}

// Clear records a logout and returns the previous user id.
func (i *Identity) Clear() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	prev := i.userID
	i.userID = ""
	return prev
}
