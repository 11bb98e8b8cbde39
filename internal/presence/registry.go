package presence

import (
	"errors"
	"sort"
	"sync"
)

var ErrAlreadyBound = errors.New("connection already bound to a user")

// Registry owns the online set. Presence is derived from live bound
// connections, never stored on its own: a user is online exactly while at
// least one of their connections is registered, so a disconnect can never
// leave a stale entry behind. All access goes through this type.
type Registry struct {
	mu     sync.Mutex
	byConn map[string]int
	conns  map[int]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]int),
		conns:  make(map[int]map[string]struct{}),
	}
}

// Register binds a connection to a user. A connection binds exactly once;
// a second bind attempt fails with ErrAlreadyBound. Returns the full online
// list to broadcast as the presence delta. The mutation is visible to all
// callers before Register returns.
func (r *Registry) Register(connID string, userID int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.byConn[connID]; bound {
		return nil, ErrAlreadyBound
	}

	r.byConn[connID] = userID
	if _, ok := r.conns[userID]; !ok {
		r.conns[userID] = make(map[string]struct{})
	}
	r.conns[userID][connID] = struct{}{}

	return r.onlineLocked(), nil
}

// Unregister removes a connection. When the user's last connection goes away
// the user leaves the online set and the updated list is returned with true;
// otherwise (user still online elsewhere, or the connection was never bound)
// the second result is false and no broadcast is needed.
func (r *Registry) Unregister(connID string) ([]int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, bound := r.byConn[connID]
	if !bound {
		return nil, false
	}
	delete(r.byConn, connID)

	set := r.conns[userID]
	delete(set, connID)
	if len(set) > 0 {
		return nil, false
	}
	delete(r.conns, userID)

	return r.onlineLocked(), true
}

// IsOnline reports whether the user has at least one live bound connection.
func (r *Registry) IsOnline(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

// OnlineUsers returns the current online set, sorted ascending.
func (r *Registry) OnlineUsers() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked()
}

func (r *Registry) onlineLocked() []int {
	users := make([]int, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	sort.Ints(users)
	return users
}
