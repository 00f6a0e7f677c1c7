package classify

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps policy classifier names to Classifiers. Safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Classifier
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Classifier)}
}

// NewBuiltinRegistry returns a registry with RegisterBuiltins applied.
func NewBuiltinRegistry() *Registry {
	reg := NewRegistry()
	RegisterBuiltins(reg)
	return reg
}

// Register associates name with c. Blank names and nil classifiers are dropped.
func (r *Registry) Register(name string, c Classifier) {
	if r == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" || c == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]Classifier)
	}
	r.m[name] = c
}

func (r *Registry) Get(name string) (Classifier, bool) {
	if r == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[name]
	return c, ok && c != nil
}

// Names lists the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
