package interp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyrite-run/pyrite/policy"
)

// Module is the value an import statement binds. Evaluated code only
// ever sees filtered proxies produced by ModuleRegistry.Load, never
// the registry's own objects.
type Module struct {
	Name  string
	attrs map[string]any
}

func NewModule(name string, attrs map[string]any) *Module {
	return &Module{Name: name, attrs: attrs}
}

func (m *Module) Attr(name string) (any, bool) {
	v, ok := m.attrs[name]
	return v, ok
}

func (m *Module) AttrNames() []string {
	out := make([]string, 0, len(m.attrs))
	for name := range m.attrs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ModuleRegistry holds the host-provided modules reachable through
// import statements. The registry itself carries no policy; the gate
// is applied at Load time.
type ModuleRegistry struct {
	modules map[string]*Module
}

func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[string]*Module)}
}

// Register adds a module under its dotted path.
func (r *ModuleRegistry) Register(m *Module) {
	r.modules[m.Name] = m
}

// DefaultModules returns a registry with the built-in math module.
func DefaultModules() *ModuleRegistry {
	r := NewModuleRegistry()
	r.Register(mathModule())
	return r
}

// Load resolves a dotted path to a filtered proxy of the registered
// module. Nested module attributes are wrapped recursively so an
// authorized import never transitively exposes an unauthorized one;
// a seen map keeps self-referential modules from recursing forever.
func (r *ModuleRegistry) Load(path string, gate *policy.Gate) (*Module, error) {
	m, ok := r.modules[path]
	if !ok {
		// A dotted path may name an attribute of a registered parent.
		if dot := strings.LastIndex(path, "."); dot > 0 {
			parent, ok := r.modules[path[:dot]]
			if ok {
				if child, found := parent.attrs[path[dot+1:]]; found {
					if childMod, isMod := child.(*Module); isMod {
						m = childMod
					}
				}
			}
		}
		if m == nil {
			return nil, fmt.Errorf("module %q is not registered", path)
		}
	}
	seen := make(map[*Module]*Module)
	return filterModule(m, gate, seen), nil
}

func filterModule(m *Module, gate *policy.Gate, seen map[*Module]*Module) *Module {
	if proxy, ok := seen[m]; ok {
		return proxy
	}
	proxy := &Module{Name: m.Name, attrs: make(map[string]any, len(m.attrs))}
	seen[m] = proxy
	for name, value := range m.attrs {
		if strings.HasPrefix(name, "__") {
			continue
		}
		if nested, ok := value.(*Module); ok {
			if !gate.Authorized(nested.Name) {
				continue
			}
			proxy.attrs[name] = filterModule(nested, gate, seen)
			continue
		}
		proxy.attrs[name] = value
	}
	return proxy
}
