package command

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrDuplicate is returned when a name or alias is already taken.
var ErrDuplicate = errors.New("command already registered")

// Match is a resolved command with its captured argument.
type Match struct {
	Command *Descriptor
	Arg     string
}

// index is an immutable snapshot of the registry. Writers build a new index
// and publish it; readers never lock.
type index struct {
	ordered  []*Descriptor
	exact    map[string]*Descriptor
	patterns []*Descriptor
}

func newIndex() *index {
	return &index{exact: make(map[string]*Descriptor)}
}

func (ix *index) clone() *index {
	out := &index{
		ordered:  append([]*Descriptor(nil), ix.ordered...),
		exact:    make(map[string]*Descriptor, len(ix.exact)),
		patterns: append([]*Descriptor(nil), ix.patterns...),
	}
	for k, v := range ix.exact {
		out.exact[k] = v
	}
	return out
}

func (ix *index) add(d Descriptor) error {
	m, err := Compile(d.Pattern)
	if err != nil {
		return err
	}
	if d.Handler == nil {
		return fmt.Errorf("command %q has no handler", m.Literal())
	}
	d.matcher = m

	aliases := make([]string, 0, len(d.Aliases))
	for _, a := range d.Aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if strings.ContainsAny(a, " \t\n") {
			return fmt.Errorf("%w: alias %q must be one word", ErrInvalidPattern, a)
		}
		aliases = append(aliases, a)
	}
	d.Aliases = aliases

	keys := aliases
	if m.SingleWord() {
		keys = append([]string{m.Literal()}, aliases...)
	}
	for _, k := range keys {
		if _, exists := ix.exact[k]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, k)
		}
	}
	for _, other := range ix.ordered {
		if other.Name() == m.Literal() {
			return fmt.Errorf("%w: %s", ErrDuplicate, m.Literal())
		}
	}

	desc := &d
	for _, k := range keys {
		ix.exact[k] = desc
	}
	ix.ordered = append(ix.ordered, desc)
	if !m.SingleWord() || m.Capture() != CaptureNone {
		ix.patterns = append(ix.patterns, desc)
	}
	return nil
}

// Registry resolves text to registered commands.
type Registry struct {
	mu  sync.Mutex // serializes writers
	cur atomic.Pointer[index]
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.cur.Store(newIndex())
	return r
}

// Register adds a command. Names and aliases must be unique.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.cur.Load().clone()
	if err := next.add(d); err != nil {
		return err
	}
	r.cur.Store(next)
	return nil
}

// Unregister removes the command whose name is name. It is a no-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))
	old := r.cur.Load()
	next := newIndex()
	for _, d := range old.ordered {
		if d.Name() == name {
			continue
		}
		// Re-adding an already compiled descriptor cannot fail.
		_ = next.add(*d)
	}
	r.cur.Store(next)
}

// Swap replaces the whole command set in one step. On error the previous
// set stays in place.
func (r *Registry) Swap(descs []Descriptor) error {
	next := newIndex()
	for _, d := range descs {
		if err := next.add(d); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur.Store(next)
	return nil
}

// Get returns the command registered under name or alias, or nil.
func (r *Registry) Get(name string) *Descriptor {
	name = strings.ToLower(strings.TrimSpace(name))
	ix := r.cur.Load()
	if d, ok := ix.exact[name]; ok {
		return d
	}
	for _, d := range ix.ordered {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// List returns commands in registration order.
func (r *Registry) List() []*Descriptor {
	ix := r.cur.Load()
	return append([]*Descriptor(nil), ix.ordered...)
}

// Resolve maps text to a command. Text that does not start with prefix is
// rejected without pattern evaluation. The first token is looked up exactly
// (names and aliases); only if that fails are capturing and multi-word
// patterns tried, in registration order, first match winning.
func (r *Registry) Resolve(text, prefix string) (Match, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return Match{}, false
	}
	body := text[len(prefix):]
	if body == "" || strings.TrimLeft(body, " \t\n") != body {
		return Match{}, false
	}

	ix := r.cur.Load()

	token, rest := splitToken(body)
	if d, ok := ix.exact[strings.ToLower(token)]; ok {
		return Match{Command: d, Arg: strings.TrimSpace(rest)}, true
	}

	for _, d := range ix.patterns {
		if arg, ok := d.matcher.Match(body); ok {
			return Match{Command: d, Arg: arg}, true
		}
	}
	return Match{}, false
}

func splitToken(body string) (string, string) {
	i := strings.IndexAny(body, " \t\n")
	if i == -1 {
		return body, ""
	}
	return body[:i], body[i:]
}
