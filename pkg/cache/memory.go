package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemorySize = 512

// NewMemory returns a per-process LRU holding encoded payloads. Entries expire
// after ttl regardless of access.
func NewMemory(size int, ttl time.Duration) *expirable.LRU[string, []byte] {
	if size <= 0 {
		size = defaultMemorySize
	}
	return expirable.NewLRU[string, []byte](size, nil, ttl)
}
