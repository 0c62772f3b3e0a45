package conversation

import "sync"

// userGuard serialises conversation turns per user while letting different
// users proceed in parallel.
type userGuard struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newUserGuard() *userGuard {
	return &userGuard{locks: make(map[int64]*userLock)}
}

// Lock blocks until userID's turn is free and returns the release func.
func (g *userGuard) Lock(userID int64) func() {
	g.mu.Lock()
	l, ok := g.locks[userID]
	if !ok {
		l = &userLock{}
		g.locks[userID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, userID)
		}
		g.mu.Unlock()
	}
}
