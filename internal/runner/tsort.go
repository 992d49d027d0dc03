package runner

import (
	"sort"

	"github.com/loomrun/loom/internal/errtax"
)

// tsort groups graph's nodes into dependency layers: each returned layer
// holds every node whose remaining edges have all been peeled by an
// earlier layer, so a layer's nodes may run in parallel once every
// earlier layer has completed. Nodes within a layer come back sorted by
// name for deterministic scheduling.
//
// Grounded on original_source/src/tsort.rs: repeatedly collect every
// node with no outstanding edges into a layer, remove those nodes from
// the graph and from every other node's edge set, and fail with
// errtax.TSort(place) if a round peels nothing while nodes remain (a
// cycle, or an edge naming a node the graph doesn't have).
func tsort(graph map[string][]string, place string) ([][]string, error) {
	nodes := make(map[string]map[string]bool, len(graph))
	for node, edges := range graph {
		set := make(map[string]bool, len(edges))
		for _, e := range edges {
			set[e] = true
		}
		nodes[node] = set
	}

	var layers [][]string
	for len(nodes) > 0 {
		layer := layerOf(nodes)
		if len(layer) == 0 {
			return nil, errtax.TSort(place)
		}

		for _, node := range layer {
			delete(nodes, node)
		}
		for _, edges := range nodes {
			for _, node := range layer {
				delete(edges, node)
			}
		}

		layers = append(layers, layer)
	}

	return layers, nil
}

func layerOf(nodes map[string]map[string]bool) []string {
	var layer []string
	for node, edges := range nodes {
		if len(edges) == 0 {
			layer = append(layer, node)
		}
	}
	sort.Strings(layer)
	return layer
}
