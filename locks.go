package rwcache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockStripes = 64

// keyLocks serializes version stamping and writes per storage key in-process,
// so a slower writer can never overwrite a newer version with an older one.
type keyLocks [lockStripes]sync.Mutex

func (l *keyLocks) forKey(storageKey string) *sync.Mutex {
	return &l[xxhash.Sum64String(storageKey)%lockStripes]
}
