package service

import (
	"hash/fnv"
	"sync"
)

// playerLocks serializes rating updates per player with striped mutexes.
// Two players may share a stripe, which serializes more than strictly
// required but never less; the invariant that matters is that two updates
// for the same player never interleave.
type playerLocks struct {
	stripes []sync.Mutex
}

func newPlayerLocks(n int) *playerLocks {
	if n < 1 {
		n = 256
	}
	return &playerLocks{stripes: make([]sync.Mutex, n)}
}

// acquire locks the stripe owning playerID and returns it for unlocking.
func (l *playerLocks) acquire(playerID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	m := &l.stripes[h.Sum32()%uint32(len(l.stripes))]
	m.Lock()
	return m
}
