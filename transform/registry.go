package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MasterOfBinary/malbatch/batch"
	"github.com/MasterOfBinary/malbatch/dataset"
	"github.com/MasterOfBinary/malbatch/sample"
)

// ErrUnknownTransform is returned by Registry.Get for names that were never
// registered.
var ErrUnknownTransform = errors.New("unknown transform")

// Registry maps names to transforms. Worker processes use it to find the
// transform a request names. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transforms map[string]batch.Transform
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{transforms: make(map[string]batch.Transform)}
}

// Register adds t under name. It returns an error if the name is empty or
// already taken.
func (r *Registry) Register(name string, t batch.Transform) error {
	if name == "" {
		return errors.New("transform name cannot be empty")
	}
	if t == nil {
		return errors.New("transform cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.transforms[name]; ok {
		return fmt.Errorf("transform %q already registered", name)
	}
	r.transforms[name] = t
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, t batch.Transform) {
	if err := r.Register(name, t); err != nil {
		panic(err)
	}
}

// Get returns the transform registered under name. The result implements
// executor.Named, so it can be handed to a ProcessPool as is.
func (r *Registry) Get(name string) (batch.Transform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTransform, name)
	}
	return Named(name, t), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Named attaches a name to t. Wrappers in this package keep the name of the
// transform they wrap.
func Named(name string, t batch.Transform) batch.Transform {
	return &named{name: name, t: t}
}

type named struct {
	name string
	t    batch.Transform
}

func (n *named) Apply(ctx context.Context, p dataset.Provider, s *sample.Sample) (interface{}, error) {
	return n.t.Apply(ctx, p, s)
}

func (n *named) TransformName() string {
	return n.name
}

// Name returns the name attached to t, or "" if it has none.
func Name(t batch.Transform) string {
	if n, ok := t.(interface{ TransformName() string }); ok {
		return n.TransformName()
	}
	return ""
}
