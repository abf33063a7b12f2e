package engine

import (
	"sort"

	"github.com/weft-io/weft/internal/ir"
)

// DAG represents a directed acyclic graph of resources for dependency
// ordering.
type DAG struct {
	nodes    map[string]*dagNode
	order    []string // topological order (creation order)
	revOrder []string // reverse topological order (destruction order)
}

type dagNode struct {
	addr     string
	decl     int      // declaration position, breaks ordering ties
	edges    []string // resources this node depends on
	revEdges []string // resources that depend on this node
}

// BuildDAG constructs a dependency graph from desired resources. It
// resolves both explicit DependsOn and implicit ref:// references
// embedded in property values.
func BuildDAG(resources []*ir.Resource) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode)}

	for i, res := range resources {
		dag.nodes[res.Addr()] = &dagNode{addr: res.Addr(), decl: i}
	}

	for _, res := range resources {
		node := dag.nodes[res.Addr()]

		for _, dep := range res.DependsOn {
			if _, ok := dag.nodes[dep]; ok {
				node.edges = append(node.edges, dep)
			}
		}

		for _, ref := range ir.CollectRefs(res.Properties) {
			if _, ok := dag.nodes[ref.Addr()]; ok && ref.Addr() != res.Addr() {
				node.edges = append(node.edges, ref.Addr())
			}
		}
	}

	return dag.finish()
}

// BuildDAGFromState constructs a dependency graph from state records,
// used when planning a destroy. Declaration order follows the order of
// records in the state file.
func BuildDAGFromState(resources []*ir.ResourceState) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode)}

	for i, res := range resources {
		dag.nodes[res.Addr()] = &dagNode{addr: res.Addr(), decl: i}
	}
	for _, res := range resources {
		node := dag.nodes[res.Addr()]
		for _, dep := range res.Dependencies {
			if _, ok := dag.nodes[dep]; ok {
				node.edges = append(node.edges, dep)
			}
		}
	}

	return dag.finish()
}

func (d *DAG) finish() (*DAG, error) {
	for addr, node := range d.nodes {
		for _, dep := range node.edges {
			d.nodes[dep].revEdges = append(d.nodes[dep].revEdges, addr)
		}
	}

	order, err := d.topoSort()
	if err != nil {
		return nil, err
	}
	d.order = order

	d.revOrder = make([]string, len(order))
	for i, addr := range order {
		d.revOrder[len(order)-1-i] = addr
	}
	return d, nil
}

// CreationOrder returns resource addresses in dependency-respecting
// creation order.
func (d *DAG) CreationOrder() []string {
	return d.order
}

// DestructionOrder returns addresses in reverse dependency order, safe
// for deletion.
func (d *DAG) DestructionOrder() []string {
	return d.revOrder
}

// Dependencies returns the direct dependencies of an address.
func (d *DAG) Dependencies(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		return node.edges
	}
	return nil
}

// TransitiveDeps returns every resource an address depends on,
// directly or through other resources.
func (d *DAG) TransitiveDeps(addr string) []string {
	seen := make(map[string]bool)
	var walk func(a string)
	walk = func(a string) {
		node, ok := d.nodes[a]
		if !ok {
			return
		}
		for _, dep := range node.edges {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(addr)
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// topoSort performs Kahn's algorithm. Among simultaneously ready
// nodes, the one declared earliest goes first, so the ordering is
// deterministic for a given template.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	for addr, node := range d.nodes {
		inDegree[addr] = len(node.edges)
	}

	var ready []string
	push := func(addr string) {
		ready = append(ready, addr)
		sort.Slice(ready, func(i, j int) bool {
			return d.nodes[ready[i]].decl < d.nodes[ready[j]].decl
		})
	}
	for addr, deg := range inDegree {
		if deg == 0 {
			push(addr)
		}
	}

	var sorted []string
	for len(ready) > 0 {
		addr := ready[0]
		ready = ready[1:]
		sorted = append(sorted, addr)

		for _, dependent := range d.nodes[addr].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				push(dependent)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		residual := make(map[string]bool)
		for addr, deg := range inDegree {
			if deg > 0 {
				residual[addr] = true
			}
		}
		// Resources that merely depend on a cycle are not members of
		// one. Peel residual nodes without residual dependents until
		// only cycle members remain.
		for {
			removed := false
			for addr := range residual {
				hasDependent := false
				for _, dependent := range d.nodes[addr].revEdges {
					if residual[dependent] {
						hasDependent = true
						break
					}
				}
				if !hasDependent {
					delete(residual, addr)
					removed = true
				}
			}
			if !removed {
				break
			}
		}

		cycle := make([]string, 0, len(residual))
		for addr := range residual {
			cycle = append(cycle, addr)
		}
		sort.Strings(cycle)
		return nil, &CycleError{Addresses: cycle}
	}

	return sorted, nil
}
