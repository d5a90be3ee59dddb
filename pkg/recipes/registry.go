// Package recipes registers the built-in recipes and resolves them by name.
package recipes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkgsmith/pkgsmith/pkg/recipe"
	"github.com/pkgsmith/pkgsmith/pkg/recipes/gdkpixbuf"
	"github.com/pkgsmith/pkgsmith/pkg/recipes/libiconv"
)

// Factory creates a fresh recipe instance.
type Factory func() (recipe.Recipe, error)

// Registry maps recipe names to factories. A new instance is created per
// lookup so concurrent runs never share recipe state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given name, replacing any previous entry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get creates a recipe instance by name.
func (r *Registry) Get(name string) (recipe.Recipe, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, recipe.NewInvalidConfigurationError(
			fmt.Sprintf("unknown recipe: %s", name), nil).WithRecipe(name)
	}
	return factory()
}

// Names returns the registered recipe names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a registry populated with every built-in recipe.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register("gdk-pixbuf", func() (recipe.Recipe, error) { return gdkpixbuf.New() })
	r.Register("libiconv", func() (recipe.Recipe, error) { return libiconv.New() })
	return r
}
