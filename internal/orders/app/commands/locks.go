package commands

import "sync"

// orderLocks hands out one mutex per order id so reconciliation for a given
// order is serialized even under concurrent webhook delivery. Entries are
// never evicted; the set of order ids seen by one process stays small.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *orderLocks) get(orderID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[orderID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[orderID] = m
	}
	return m
}
