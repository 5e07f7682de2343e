package node

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSessionCacheSize = 256

// sessionCache is a bounded peer_pubkey -> derived session key cache.
// Eviction is always safe: a dropped session is simply re-derived via
// ECDH on next use.
type sessionCache struct {
	cache *lru.Cache[string, [32]byte]
}

func newSessionCache(size int) (*sessionCache, error) {
	if size < 128 {
		size = defaultSessionCacheSize
	}
	c, err := lru.New[string, [32]byte](size)
	if err != nil {
		return nil, err
	}
	return &sessionCache{cache: c}, nil
}

func (c *sessionCache) get(peerPubkeyHex string) ([32]byte, bool) {
	return c.cache.Get(peerPubkeyHex)
}

func (c *sessionCache) put(peerPubkeyHex string, key [32]byte) {
	c.cache.Add(peerPubkeyHex, key)
}
