package rollback

import "sync"

// keyedMutex provides one mutex per service so the monitor path and the
// external trigger path can never run mutating steps against the same
// service simultaneously, while distinct services proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until the service's mutex is held and returns the unlock func.
func (k *keyedMutex) Lock(service string) func() {
	k.mu.Lock()
	m, ok := k.locks[service]
	if !ok {
		m = &sync.Mutex{}
		k.locks[service] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
