package compose

import (
	"fmt"
	"sort"
	"strings"
)

// TopoSort returns a start order in which every dependency precedes its
// dependents. The reverse is the stop order. Sibling services with no
// edge between them keep a deterministic (alphabetical) relative order
// here; the engine is still free to start them concurrently.
func (m *Manifest) TopoSort() ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(m.Services))
	order := make([]string, 0, len(m.Services))

	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			cycle := append(trail, name)
			return fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
		}
		state[name] = visiting

		svc := m.Services[name]
		if svc != nil {
			deps := make([]string, 0, len(svc.DependsOn))
			for dep := range svc.DependsOn {
				deps = append(deps, dep)
			}
			sort.Strings(deps)
			for _, dep := range deps {
				if _, ok := m.Services[dep]; !ok {
					return fmt.Errorf("service %q depends on undeclared service %q", name, dep)
				}
				if err := visit(dep, append(trail, name)); err != nil {
					return err
				}
			}
		}

		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range m.ServiceNames() {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Dependents returns the reverse adjacency of the service graph: for
// each service, the names of services that depend on it.
func (m *Manifest) Dependents() map[string][]string {
	out := make(map[string][]string, len(m.Services))
	for _, name := range m.ServiceNames() {
		svc := m.Services[name]
		for dep := range svc.DependsOn {
			out[dep] = append(out[dep], name)
		}
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}
