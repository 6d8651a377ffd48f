package providers

import (
	"errors"
	"sync"
)

// ErrEmptyKeyPool is returned when a KeyPool is constructed without credentials.
var ErrEmptyKeyPool = errors.New("providers: key pool is empty")

// KeyPool holds an ordered set of API credentials with a single rotation
// cursor. Rotation is plain round-robin: a key that keeps failing comes back
// around after a full cycle. Keys are fixed at startup; rotation is the only
// mutation. Safe for concurrent use.
type KeyPool struct {
	mu    sync.Mutex
	keys  []string
	index int
}

// NewKeyPool creates a pool from the given credentials.
// Fails fast on an empty pool — every caller expects Current() to succeed.
func NewKeyPool(keys []string) (*KeyPool, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyKeyPool
	}
	cp := make([]string, len(keys))
	copy(cp, keys)
	return &KeyPool{keys: cp}, nil
}

// Current returns the credential at the cursor.
func (p *KeyPool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[p.index]
}

// Rotate advances the cursor circularly and returns the new current credential.
func (p *KeyPool) Rotate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index = (p.index + 1) % len(p.keys)
	return p.keys[p.index]
}

// Size returns the number of credentials in the pool.
func (p *KeyPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
