// Package navigation abstracts the route/navigation service the controller
// redirects through. The rest of the application owns the real router; the
// controller only needs the current path and a way to move off it.
package navigation

import "sync"

type Navigator interface {
	CurrentPath() string
	NavigateTo(path string)
}

// MemoryNavigator tracks the current path in process. Used by the CLI and by
// tests, where there is no browser history to delegate to.
type MemoryNavigator struct {
	current string
	history []string
	lock    sync.Mutex
}

var _ Navigator = (*MemoryNavigator)(nil)

func NewMemoryNavigator(initialPath string) *MemoryNavigator {
	return &MemoryNavigator{current: initialPath}
}

func (mn *MemoryNavigator) CurrentPath() string {
	mn.lock.Lock()
	defer mn.lock.Unlock()
	return mn.current
}

func (mn *MemoryNavigator) NavigateTo(path string) {
	mn.lock.Lock()
	defer mn.lock.Unlock()
	mn.history = append(mn.history, path)
	mn.current = path
}

// History returns every path navigated to, oldest first.
func (mn *MemoryNavigator) History() []string {
	mn.lock.Lock()
	defer mn.lock.Unlock()
	out := make([]string, len(mn.history))
	copy(out, mn.history)
	return out
}
