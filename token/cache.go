package token

import (
	"sync"
	"time"
)

// CredentialCache stores the most recent credential per identity.
type CredentialCache interface {
	Get(identityID string) (*Credential, bool)
	Put(c *Credential)
	Len() int
	// EvictExpired drops every credential whose expiry is not after now and
	// returns the number removed.
	EvictExpired(now time.Time) int
}

var _ CredentialCache = (*MemoryCache)(nil)

type MemoryCache struct {
	credentials map[string]*Credential
	lock        sync.RWMutex
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		credentials: make(map[string]*Credential),
	}
}

func (mc *MemoryCache) Get(identityID string) (*Credential, bool) {
	mc.lock.RLock()
	defer mc.lock.RUnlock()
	c, ok := mc.credentials[identityID]
	return c, ok
}

func (mc *MemoryCache) Put(c *Credential) {
	mc.lock.Lock()
	defer mc.lock.Unlock()
	mc.credentials[c.SubjectID] = c
}

func (mc *MemoryCache) Len() int {
	mc.lock.RLock()
	defer mc.lock.RUnlock()
	return len(mc.credentials)
}

func (mc *MemoryCache) EvictExpired(now time.Time) int {
	mc.lock.Lock()
	defer mc.lock.Unlock()
	removed := 0
	for id, c := range mc.credentials {
		if !c.ExpiresAt.After(now) {
			delete(mc.credentials, id)
			removed++
		}
	}
	return removed
}
