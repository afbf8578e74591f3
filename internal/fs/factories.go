package fs

import "sync"

// Factories is the ordered set of installed filesystem factories. A
// local factory is always installed first; a network factory may come
// and go while the discoverer is paused.
type Factories struct {
	mu   sync.RWMutex
	list []Factory
}

// NewFactories builds the set with its initial factories.
func NewFactories(initial ...Factory) *Factories {
	return &Factories{list: initial}
}

// Add appends a factory to the resolution order.
func (fs *Factories) Add(f Factory) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.list = append(fs.list, f)
}

// RemoveNetwork drops every network factory.
func (fs *Factories) RemoveNetwork() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	kept := fs.list[:0]
	for _, f := range fs.list {
		if !f.IsNetwork() {
			kept = append(kept, f)
		}
	}
	fs.list = kept
}

// ForMrl returns the first factory supporting an MRL, or nil.
func (fs *Factories) ForMrl(mrl string) Factory {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	for _, f := range fs.list {
		if f.IsMrlSupported(mrl) {
			return f
		}
	}
	return nil
}

// All returns a snapshot of the installed factories.
func (fs *Factories) All() []Factory {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]Factory, len(fs.list))
	copy(out, fs.list)
	return out
}
