package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jdelaire/openbot/core/message"
)

// Gateways holds named gateway sessions and tracks the default.
type Gateways struct {
	mu          sync.RWMutex
	gateways    map[string]message.Gateway
	defaultName string
}

// NewGateways creates an empty gateway registry.
func NewGateways() *Gateways {
	return &Gateways{
		gateways: make(map[string]message.Gateway),
	}
}

// Register adds a gateway. The first registered gateway becomes the default.
func (r *Gateways) Register(gw message.Gateway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := gw.Name()
	if _, exists := r.gateways[name]; exists {
		return fmt.Errorf("gateway %q already registered", name)
	}
	r.gateways[name] = gw
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// Default returns the default gateway.
func (r *Gateways) Default() (message.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultName == "" {
		return nil, fmt.Errorf("no gateways registered")
	}
	return r.gateways[r.defaultName], nil
}

// Get returns a gateway by name. An empty name selects the default.
func (r *Gateways) Get(name string) (message.Gateway, error) {
	if name == "" {
		return r.Default()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("gateway %q not found", name)
	}
	return gw, nil
}

// Names lists registered gateways in lexical order.
func (r *Gateways) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
