package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// DAG is a validated, acyclic set of tasks grouped into layers. Every task
// in a layer depends only on tasks in earlier layers, so a layer's tasks
// may run concurrently.
type DAG struct {
	id     string
	tasks  map[string]Task
	layers [][]Task
}

// NewDAG validates the tasks and computes their layers.
func NewDAG(id string, tasks ...Task) (*DAG, error) {
	if id == "" {
		return nil, fmt.Errorf("dag id is required")
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("dag %s has no tasks", id)
	}

	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		if t.ID() == "" {
			return nil, fmt.Errorf("dag %s: task with empty id", id)
		}
		if _, dup := byID[t.ID()]; dup {
			return nil, fmt.Errorf("dag %s: duplicate task %s", id, t.ID())
		}
		byID[t.ID()] = t
	}
	for _, t := range tasks {
		for _, up := range t.Upstream() {
			if _, ok := byID[up]; !ok {
				return nil, fmt.Errorf("dag %s: task %s depends on unknown task %s", id, t.ID(), up)
			}
		}
	}

	// Kahn's algorithm, one layer per round.
	indegree := make(map[string]int, len(tasks))
	downstream := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		indegree[t.ID()] += 0
		for _, up := range t.Upstream() {
			indegree[t.ID()]++
			downstream[up] = append(downstream[up], t.ID())
		}
	}

	var layers [][]Task
	var ready []string
	for _, t := range tasks {
		if indegree[t.ID()] == 0 {
			ready = append(ready, t.ID())
		}
	}
	placed := 0
	for len(ready) > 0 {
		sort.Strings(ready)
		layer := make([]Task, 0, len(ready))
		var next []string
		for _, tid := range ready {
			layer = append(layer, byID[tid])
			for _, down := range downstream[tid] {
				indegree[down]--
				if indegree[down] == 0 {
					next = append(next, down)
				}
			}
		}
		stage := layer[0].Stage()
		for _, t := range layer[1:] {
			if t.Stage() != stage {
				return nil, fmt.Errorf("dag %s: tasks %s and %s share a layer but advance different stages",
					id, layer[0].ID(), t.ID())
			}
		}
		layers = append(layers, layer)
		placed += len(layer)
		ready = next
	}
	if placed != len(tasks) {
		var cyclic []string
		for tid, n := range indegree {
			if n > 0 {
				cyclic = append(cyclic, tid)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("dag %s: dependency cycle among %s", id, strings.Join(cyclic, ", "))
	}

	return &DAG{id: id, tasks: byID, layers: layers}, nil
}

// ID returns the DAG identifier.
func (d *DAG) ID() string {
	return d.id
}

// Layers returns the tasks grouped in execution order.
func (d *DAG) Layers() [][]Task {
	return d.layers
}

// Task looks up a task by id.
func (d *DAG) Task(id string) (Task, bool) {
	t, ok := d.tasks[id]
	return t, ok
}

// Len returns the number of tasks.
func (d *DAG) Len() int {
	return len(d.tasks)
}

// String renders the dependency chain, e.g. "a >> [b, c] >> d".
func (d *DAG) String() string {
	parts := make([]string, 0, len(d.layers))
	for _, layer := range d.layers {
		ids := make([]string, 0, len(layer))
		for _, t := range layer {
			ids = append(ids, t.ID())
		}
		if len(ids) == 1 {
			parts = append(parts, ids[0])
		} else {
			parts = append(parts, "["+strings.Join(ids, ", ")+"]")
		}
	}
	return strings.Join(parts, " >> ")
}
