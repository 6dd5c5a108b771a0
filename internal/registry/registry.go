// ABOUTME: Thread-safe registry mapping model names to admin descriptors
// ABOUTME: Validates descriptors and inline trees at registration and resolves names for the API pipeline

package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/modeladmin/internal/admin"
	"github.com/2389/modeladmin/internal/apierr"
)

// ErrModelAlreadyRegistered indicates a descriptor with the same name is already bound.
var ErrModelAlreadyRegistered = errors.New("model already registered")

// ErrInlineCycle indicates an inline tree refers back to one of its ancestors.
var ErrInlineCycle = errors.New("inline cycle")

// entry is a registered top-level descriptor and its role restriction.
type entry struct {
	desc  *admin.Descriptor
	roles []string
}

// inlineEntry is a descriptor reachable only as an inline of another model.
type inlineEntry struct {
	desc   *admin.Descriptor
	parent string // top-level model that owns the inline tree
	fk     string
}

// Registry maintains the model name to descriptor bindings.
// One RWMutex guards everything; registration is rare and lookups are cheap.
type Registry struct {
	mu      sync.RWMutex
	models  map[string]*entry
	inlines map[string]*inlineEntry
	logger  *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		models:  make(map[string]*entry),
		inlines: make(map[string]*inlineEntry),
		logger:  logger.With("component", "registry"),
	}
}

// Register validates d and its inline tree and binds it under d.Name.
// roles, when given, restrict the model to users holding at least one of them.
// Every failure is a configuration error.
func (r *Registry) Register(d *admin.Descriptor, roles ...string) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[d.Name]; exists {
		return apierr.Wrap(apierr.KindConfiguration, ErrModelAlreadyRegistered,
			fmt.Sprintf("model %q is already registered", d.Name))
	}
	if _, exists := r.inlines[d.Name]; exists {
		return apierr.Wrap(apierr.KindConfiguration, ErrModelAlreadyRegistered,
			fmt.Sprintf("model %q is already registered as an inline", d.Name))
	}

	found := make(map[string]*inlineEntry)
	if err := r.walkInlines(d, d.Name, []string{d.Name}, found); err != nil {
		return err
	}

	r.models[d.Name] = &entry{desc: d, roles: append([]string(nil), roles...)}
	for name, in := range found {
		r.inlines[name] = in
	}

	r.logger.Info("=== MODEL REGISTERED ===",
		"model", d.Name,
		"fields", len(d.Fields),
		"actions", len(d.Actions),
		"inlines", len(found),
		"roles", roles,
		"total_models", len(r.models),
	)
	return nil
}

// walkInlines validates every inline below parent. path holds the ancestor
// names so a child that names one of them is rejected as a cycle.
// Must be called with mu held.
func (r *Registry) walkInlines(parent *admin.Descriptor, root string, path []string, found map[string]*inlineEntry) error {
	for _, in := range parent.Inlines {
		child := in.Descriptor
		for _, ancestor := range path {
			if child.Name == ancestor {
				return apierr.Wrap(apierr.KindConfiguration, ErrInlineCycle,
					fmt.Sprintf("model %q: inline %q refers back to %q", parent.Name, child.Name, ancestor))
			}
		}
		if err := child.Validate(); err != nil {
			return err
		}
		fk, ok := child.Field(in.FKField)
		if !ok {
			return apierr.Configurationf("model %q: inline %q has no field %q", parent.Name, child.Name, in.FKField)
		}
		if fk.ForeignKey != "" && fk.ForeignKey != parent.Name {
			return apierr.Configurationf("model %q: inline %q field %q references %q, not %q",
				parent.Name, child.Name, in.FKField, fk.ForeignKey, parent.Name)
		}
		if _, exists := r.models[child.Name]; exists {
			return apierr.Configurationf("model %q: inline %q is already registered as a model", parent.Name, child.Name)
		}
		if _, exists := r.inlines[child.Name]; exists {
			return apierr.Configurationf("model %q: inline %q is already registered", parent.Name, child.Name)
		}
		if _, exists := found[child.Name]; exists {
			return apierr.Configurationf("model %q: inline %q appears twice", parent.Name, child.Name)
		}

		found[child.Name] = &inlineEntry{desc: child, parent: root, fk: in.FKField}
		if err := r.walkInlines(child, root, append(path, child.Name), found); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes the named models and their inline trees. Unknown names are ignored.
func (r *Registry) Unregister(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, exists := r.models[name]; !exists {
			continue
		}
		delete(r.models, name)
		for inlineName, in := range r.inlines {
			if in.parent == name {
				delete(r.inlines, inlineName)
			}
		}
		r.logger.Info("=== MODEL UNREGISTERED ===", "model", name, "total_models", len(r.models))
	}
}

// RegisterScoped registers d and returns a function that unregisters it.
// Tests pass the function to t.Cleanup.
func (r *Registry) RegisterScoped(d *admin.Descriptor, roles ...string) (func(), error) {
	if err := r.Register(d, roles...); err != nil {
		return nil, err
	}
	return func() { r.Unregister(d.Name) }, nil
}

// Resolve returns the descriptor bound to name, including inline descriptors.
func (r *Registry) Resolve(name string) (*admin.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.models[name]; ok {
		return e.desc, nil
	}
	if in, ok := r.inlines[name]; ok {
		return in.desc, nil
	}
	return nil, apierr.NotFoundf("%s model is not registered", name)
}

// IsRegistered reports whether name resolves.
func (r *Registry) IsRegistered(name string) bool {
	_, err := r.Resolve(name)
	return err == nil
}

// Roles returns the role restriction for name. Inline models inherit the
// restriction of the model that owns them.
func (r *Registry) Roles(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if in, ok := r.inlines[name]; ok {
		name = in.parent
	}
	if e, ok := r.models[name]; ok {
		return append([]string(nil), e.roles...)
	}
	return nil
}

// Parent returns the owning top-level model of an inline and its foreign key field.
func (r *Registry) Parent(name string) (parent, fk string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.inlines[name]
	if !ok {
		return "", "", false
	}
	return in.parent, in.fk, true
}

// Descriptors returns the top-level descriptors sorted by name.
func (r *Registry) Descriptors() []*admin.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*admin.Descriptor, 0, len(r.models))
	for _, e := range r.models {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of top-level models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// Close clears every binding. It is called during shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.models)
	r.models = make(map[string]*entry)
	r.inlines = make(map[string]*inlineEntry)

	r.logger.Info("registry closed", "models_cleared", count)
}
