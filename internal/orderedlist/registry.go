package orderedlist

import (
	"fmt"
	"sort"

	"github.com/dmehra2102/ListForge/internal/domain"
)

// Registry looks list types up by name.
type Registry struct {
	lists map[string]*List
}

func NewRegistry(lists ...*List) (*Registry, error) {
	r := &Registry{lists: make(map[string]*List, len(lists))}
	for _, l := range lists {
		if _, dup := r.lists[l.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate list %q", domain.ErrInvalidConfig, l.Name())
		}
		r.lists[l.Name()] = l
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (*List, error) {
	l, ok := r.lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownList, name)
	}
	return l, nil
}

// Names returns the registered list names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.lists))
	for name := range r.lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
