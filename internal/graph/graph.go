// Package graph builds and validates the dependency DAG over a set of tasks
// (spec §3 "DAG", §4.1 "Config & DAG") and restricts it to a requested
// subset of jobs.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chorusdev/chorus/internal/task"
	"github.com/samber/lo"
)

// DAG is the validated, dependency-simplified task graph. A DAG is
// immutable; Filter returns a new, restricted DAG rather than mutating the
// receiver.
type DAG struct {
	tasks      map[string]task.Task // keyed by name, DependsOn already simplified
	order      []string             // topological order: every task after all its dependencies
	downstream map[string][]string  // dependency name -> ordered list of dependents
}

// Build validates tasks and returns their DAG, or the first validation
// failure in the order: unknown dependency, self-dependency, cycle.
func Build(tasks []task.Task) (*DAG, error) {
	byName := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		byName[t.Name] = t
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, t.Name, dep)
			}
		}
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.Name {
				return nil, fmt.Errorf("%w: %s", ErrSelfDependency, t.Name)
			}
		}
	}

	order, err := topoSort(byName)
	if err != nil {
		return nil, err
	}

	reach := transitiveClosures(byName, order)
	for name, t := range byName {
		t.DependsOn = simplify(t.DependsOn, reach)
		byName[name] = t
	}

	downstream := make(map[string][]string, len(byName))
	for _, name := range order {
		for _, dep := range byName[name].DependsOn {
			downstream[dep] = append(downstream[dep], name)
		}
	}

	return &DAG{tasks: byName, order: order, downstream: downstream}, nil
}

// topoSort repeatedly extracts tasks whose dependencies have all already
// been emitted (Kahn's algorithm), producing an order where every task
// appears after all of its dependencies. It reports a cycle if a full pass
// emits nothing while tasks remain.
func topoSort(byName map[string]task.Task) ([]string, error) {
	remaining := make(map[string]task.Task, len(byName))
	for k, v := range byName {
		remaining[k] = v
	}

	var order []string
	for len(remaining) > 0 {
		var ready []string
		for name, t := range remaining {
			if allEmitted(t.DependsOn, order) {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			names := lo.Keys(remaining)
			sort.Strings(names)
			return nil, fmt.Errorf("%w among %s", ErrCycle, strings.Join(names, ", "))
		}
		sort.Strings(ready)
		for _, name := range ready {
			order = append(order, name)
			delete(remaining, name)
		}
	}
	return order, nil
}

func allEmitted(deps []string, emitted []string) bool {
	for _, d := range deps {
		if !lo.Contains(emitted, d) {
			return false
		}
	}
	return true
}

// transitiveClosures computes, for each task, the full set of tasks
// reachable by following DependsOn edges, used by simplify. order is
// processed dependency-first so each task's closure is built from already
// computed closures of its own dependencies.
func transitiveClosures(byName map[string]task.Task, order []string) map[string]map[string]bool {
	closures := make(map[string]map[string]bool, len(byName))
	for _, name := range order {
		closure := map[string]bool{}
		for _, dep := range byName[name].DependsOn {
			closure[dep] = true
			for r := range closures[dep] {
				closure[r] = true
			}
		}
		closures[name] = closure
	}
	return closures
}

// simplify removes, from a task's declared dependency list, any dependency
// that is already transitively implied by another dependency in the same
// list (§4.1: "A depends on B and on C where B depends on C" collapses to
// "A depends on B").
func simplify(deps []string, reach map[string]map[string]bool) []string {
	return lo.Filter(deps, func(d string, _ int) bool {
		for _, other := range deps {
			if other != d && reach[other][d] {
				return false
			}
		}
		return true
	})
}

// Order returns the topological order: every task after all of its
// (simplified) dependencies.
func (d *DAG) Order() []string {
	return append([]string(nil), d.order...)
}

// BuildOrder returns the reverse of Order: every task before all of its
// dependencies. The builder (C9) instantiates supervisors in this order so
// that a task's downstream addresses already exist when the task itself is
// constructed (§4.1, §9 "cyclic addressing").
func (d *DAG) BuildOrder() []string {
	rev := make([]string, len(d.order))
	for i, name := range d.order {
		rev[len(d.order)-1-i] = name
	}
	return rev
}

// Task returns the (simplified) task definition for name.
func (d *DAG) Task(name string) (task.Task, bool) {
	t, ok := d.tasks[name]
	return t, ok
}

// Downstream returns the ordered list of task names that directly depend on
// name, i.e. name's dependents.
func (d *DAG) Downstream(name string) []string {
	return append([]string(nil), d.downstream[name]...)
}

// Names returns every task name in topological order.
func (d *DAG) Names() []string {
	return d.Order()
}

// Filter restricts the DAG to the requested task names plus the transitive
// closure of their (simplified) dependencies. It fails if any requested
// name is unknown, with an error listing the valid jobs and their
// simplified dependencies (§4.1).
func (d *DAG) Filter(requested []string) (*DAG, error) {
	for _, name := range requested {
		if _, ok := d.tasks[name]; !ok {
			return nil, fmt.Errorf("%w: %s\nvalid jobs:\n%s", ErrUnknownTask, name, d.FormatJobs())
		}
	}

	keep := map[string]bool{}
	var walk func(string)
	walk = func(name string) {
		if keep[name] {
			return
		}
		keep[name] = true
		t := d.tasks[name]
		for _, dep := range t.DependsOn {
			walk(dep)
		}
	}
	for _, name := range requested {
		walk(name)
	}

	kept := make([]task.Task, 0, len(keep))
	for _, name := range d.order {
		if keep[name] {
			kept = append(kept, d.tasks[name])
		}
	}
	return Build(kept)
}

// FormatJobs renders every task with its simplified dependencies, sorted by
// name, one per line — reused by the `jobs` CLI subcommand (SPEC_FULL.md
// "SUPPLEMENTED FEATURES" #3) as well as Filter's error message.
func (d *DAG) FormatJobs() string {
	names := lo.Keys(d.tasks)
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		deps := d.tasks[name].DependsOn
		if len(deps) == 0 {
			fmt.Fprintf(&b, "  %s\n", name)
			continue
		}
		sorted := append([]string(nil), deps...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "  %s: depends on [%s]\n", name, strings.Join(sorted, ", "))
	}
	return b.String()
}
