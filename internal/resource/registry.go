package resource

import (
	"encoding/json"
	"reflect"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Resource binds a Config to the Go model its rows decode into.
type Resource[T any] struct {
	cfg *Config
}

// Config returns the registered configuration.
func (r *Resource[T]) Config() *Config { return r.cfg }

// Decode converts a stored row into the model.
func (r *Resource[T]) Decode(rec Record) (T, error) {
	var out T
	raw, err := json.Marshal(rec)
	if err != nil {
		return out, goerr.Wrap(err, "failed to encode record", goerr.V("resource", r.cfg.Name))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, goerr.Wrap(err, "failed to decode record", goerr.V("resource", r.cfg.Name))
	}
	return out, nil
}

// DecodeAll converts rows in order.
func (r *Resource[T]) DecodeAll(recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := r.Decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Registry is the table of every registered resource.
type Registry struct {
	configs map[string]*Config
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{configs: map[string]*Config{}}
}

// Register adds cfg to the registry after checking it against the model T.
// Every column the config names must be a json field of T, so a config that
// drifts from its model fails at startup instead of at request time.
func Register[T any](reg *Registry, cfg Config) (*Resource[T], error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	if _, dup := reg.configs[cfg.Name]; dup {
		return nil, goerr.New("resource registered twice", goerr.V("resource", cfg.Name))
	}
	var zero T
	tags := jsonFields(reflect.TypeOf(zero))
	if tags == nil {
		return nil, goerr.New("resource model must be a struct", goerr.V("resource", cfg.Name))
	}
	for _, col := range cfg.Columns() {
		if _, ok := tags[col]; !ok {
			return nil, goerr.New("model is missing a column",
				goerr.V("resource", cfg.Name), goerr.V("column", col),
				goerr.V("model", reflect.TypeOf(zero).String()))
		}
	}
	c := cfg
	reg.configs[c.Name] = &c
	reg.order = append(reg.order, c.Name)
	return &Resource[T]{cfg: &c}, nil
}

// Get returns a registered config.
func (r *Registry) Get(name string) (*Config, bool) {
	c, ok := r.configs[name]
	return c, ok
}

// Configs returns every config in registration order.
func (r *Registry) Configs() []*Config {
	out := make([]*Config, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.configs[n])
	}
	return out
}

// Children returns the configs whose parent is name.
func (r *Registry) Children(name string) []*Config {
	var out []*Config
	for _, c := range r.Configs() {
		if c.Parent != nil && c.Parent.Resource == name {
			out = append(out, c)
		}
	}
	return out
}

// Ancestors returns the parent chain of name, outermost first.
func (r *Registry) Ancestors(name string) []*Config {
	var chain []*Config
	c := r.configs[name]
	for c != nil && c.Parent != nil {
		p := r.configs[c.Parent.Resource]
		if p == nil {
			break
		}
		chain = append([]*Config{p}, chain...)
		c = p
	}
	return chain
}

// Check verifies cross-resource references once every resource is registered.
func (r *Registry) Check() error {
	for _, c := range r.Configs() {
		if c.Parent != nil {
			if _, ok := r.configs[c.Parent.Resource]; !ok {
				return goerr.New("parent resource is not registered",
					goerr.V("resource", c.Name), goerr.V("parent", c.Parent.Resource))
			}
			if slices.Contains(r.ancestorNames(c.Name), c.Name) {
				return goerr.New("parent chain is cyclic", goerr.V("resource", c.Name))
			}
		}
		for _, f := range c.Fields {
			if f.Ref == "" {
				continue
			}
			if _, ok := r.configs[f.Ref]; !ok {
				return goerr.New("referenced resource is not registered",
					goerr.V("resource", c.Name), goerr.V("field", f.Key), goerr.V("ref", f.Ref))
			}
		}
	}
	return nil
}

func (r *Registry) ancestorNames(name string) []string {
	var out []string
	seen := map[string]bool{}
	c := r.configs[name]
	for c != nil && c.Parent != nil && !seen[c.Name] {
		seen[c.Name] = true
		out = append(out, c.Parent.Resource)
		c = r.configs[c.Parent.Resource]
	}
	return out
}

func (c *Config) check() error {
	fail := func(msg string, opts ...goerr.Option) error {
		return goerr.New(msg, append(opts, goerr.V("resource", c.Name))...)
	}
	if c.Name == "" {
		return goerr.New("resource name is required")
	}
	seen := map[string]bool{}
	for _, f := range c.Fields {
		if f.Key == "" {
			return fail("field key is required")
		}
		if seen[f.Key] || f.Key == ColID || f.Key == ColWorkspaceID || f.Key == ColPosition {
			return fail("field key is duplicated or reserved", goerr.V("field", f.Key))
		}
		seen[f.Key] = true
		if f.Type == Select && len(f.Options) == 0 {
			return fail("select field needs options", goerr.V("field", f.Key))
		}
		if f.Ref != "" && f.RefTable != "" {
			return fail("field references both a resource and a table", goerr.V("field", f.Key))
		}
	}
	for _, k := range c.SearchFields {
		if !seen[k] {
			return fail("search field is not declared", goerr.V("field", k))
		}
	}
	if c.SortField != "" && !seen[c.SortField] && !(c.Ordered && c.SortField == ColPosition) {
		return fail("sort field is not declared", goerr.V("field", c.SortField))
	}
	if c.Parent != nil && (c.Parent.Resource == "" || c.Parent.KeyField == "") {
		return fail("parent relation is incomplete")
	}
	if c.Ordered && c.Parent == nil {
		return fail("ordered resource needs a parent")
	}
	if c.IsToggle() {
		if c.Parent == nil || c.PrincipalField == "" || !seen[c.Toggle] {
			return fail("toggle resource needs a parent, a principal field and a declared discriminator")
		}
		if len(c.Actions) > 0 {
			return fail("toggle resource cannot enable actions")
		}
	}
	cols := c.Columns()
	for _, uk := range c.UniqueTogether {
		for _, col := range uk {
			if !slices.Contains(cols, col) {
				return fail("unique key names an unknown column", goerr.V("column", col))
			}
		}
	}
	return nil
}

// jsonFields collects json names of a struct, descending into embedded structs.
func jsonFields(t reflect.Type) map[string]struct{} {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	out := map[string]struct{}{}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if sf.Anonymous && tag == "" {
			for k := range jsonFields(sf.Type) {
				out[k] = struct{}{}
			}
			continue
		}
		if !sf.IsExported() || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}
		out[name] = struct{}{}
	}
	return out
}
