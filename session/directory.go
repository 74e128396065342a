package session

import "sync"

// Directory maps live connection IDs to display names. It is a plain lookup
// table owned by whoever wires the server together, so tests can run with
// isolated instances.
type Directory struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewDirectory() *Directory {
	return &Directory{names: make(map[string]string)}
}

func (d *Directory) Register(connID, username string) {
	d.mu.Lock()
	d.names[connID] = username
	d.mu.Unlock()
}

// Lookup returns the display name for a connection and whether one is
// registered.
func (d *Directory) Lookup(connID string) (string, bool) {
	d.mu.RLock()
	name, ok := d.names[connID]
	d.mu.RUnlock()
	return name, ok
}

// Unregister removes a connection's entry. Unknown IDs are a no-op.
func (d *Directory) Unregister(connID string) {
	d.mu.Lock()
	delete(d.names, connID)
	d.mu.Unlock()
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.names)
}
