package workflow

import (
	"fmt"

	"github.com/hupe1980/taskmesh/core"
)

// topoLayers partitions tasks into dependency levels: every task in layer N
// depends only on tasks in layers < N. Tasks within one layer share no
// ordering constraint and may run concurrently. Returns an error when the
// dependency relation contains a cycle or references an unknown task id.
func topoLayers(tasks []core.Task) ([][]core.Task, error) {
	byID := make(map[string]core.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		indegree[t.ID] += 0
		for _, dep := range t.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on unknown task %s", t.ID, dep)
			}
			indegree[t.ID]++
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	// Kahn's algorithm, peeled one full level at a time to preserve the
	// original task order within each layer.
	var layers [][]core.Task
	remaining := len(tasks)
	for remaining > 0 {
		var layer []core.Task
		for _, t := range tasks {
			if deg, ok := indegree[t.ID]; ok && deg == 0 {
				layer = append(layer, t)
			}
		}
		if len(layer) == 0 {
			return nil, fmt.Errorf("dependency cycle detected among remaining %d tasks", remaining)
		}
		for _, t := range layer {
			delete(indegree, t.ID)
			for _, next := range dependents[t.ID] {
				if _, ok := indegree[next]; ok {
					indegree[next]--
				}
			}
		}
		layers = append(layers, layer)
		remaining -= len(layer)
	}
	return layers, nil
}
