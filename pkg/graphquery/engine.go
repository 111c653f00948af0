package graphquery

import (
	"context"
	"fmt"
	"sort"

	"github.com/schemalens/schemalens-go/pkg/models"
)

// Direction selects which edges Neighbors follows
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// CentralityAlgorithm selects a node-ranking algorithm
type CentralityAlgorithm string

const (
	CentralityDegree      CentralityAlgorithm = "degree"
	CentralityBetweenness CentralityAlgorithm = "betweenness"
	CentralityPageRank    CentralityAlgorithm = "pagerank"
)

// NodeRef identifies one graph node in a query result
type NodeRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GraphQuery is the backend-agnostic graph query contract. A backend is
// loaded once per request (or per cache generation) and then queried;
// all operations are read-only against the loaded graph. A second
// backend is added by implementing these four operations.
type GraphQuery interface {
	// Neighbors returns the nodes adjacent to nodeID in the given
	// direction, in edge-discovery order
	Neighbors(ctx context.Context, nodeID string, direction Direction) ([]NodeRef, error)

	// ShortestPath returns an unweighted shortest path from fromID to
	// toID. An unreachable target is reported as found=false, not an error.
	ShortestPath(ctx context.Context, fromID, toID string) ([]NodeRef, bool, error)

	// Traverse returns the nodes reachable from startID within maxDepth
	// hops, breadth-first, each node at most once. maxDepth <= 0 returns
	// just the start node.
	Traverse(ctx context.Context, startID string, maxDepth int) ([]NodeRef, error)

	// Centrality scores every node. Results are deterministic for a
	// given graph.
	Centrality(ctx context.Context, algorithm CentralityAlgorithm) (map[string]float64, error)
}

// MemoryEngine is the in-process GraphQuery backend: an adjacency index
// over an immutable node/edge set. Build a fresh instance per request;
// the engine holds no cross-request state.
type MemoryEngine struct {
	labels    map[string]string
	out       map[string][]string // insertion order preserved
	in        map[string][]string
	sortedIDs []string
}

// NewMemoryEngine creates an engine loaded from render-ready snapshot collections
func NewMemoryEngine(nodes []models.GraphNode, edges []models.GraphEdge) (*MemoryEngine, error) {
	e := &MemoryEngine{
		labels: make(map[string]string, len(nodes)),
		out:    make(map[string][]string),
		in:     make(map[string][]string),
	}

	for _, node := range nodes {
		if node.ID == "" {
			return nil, fmt.Errorf("graph node with empty id")
		}
		if _, dup := e.labels[node.ID]; dup {
			return nil, fmt.Errorf("duplicate graph node id %s", node.ID)
		}
		e.labels[node.ID] = node.Label
		e.sortedIDs = append(e.sortedIDs, node.ID)
	}
	sort.Strings(e.sortedIDs)

	for _, edge := range edges {
		if _, ok := e.labels[edge.Source]; !ok {
			return nil, fmt.Errorf("edge source %s is not a loaded node", edge.Source)
		}
		if _, ok := e.labels[edge.Target]; !ok {
			return nil, fmt.Errorf("edge target %s is not a loaded node", edge.Target)
		}
		e.out[edge.Source] = append(e.out[edge.Source], edge.Target)
		e.in[edge.Target] = append(e.in[edge.Target], edge.Source)
	}

	return e, nil
}

// NewMemoryEngineFromOntology creates an engine directly from ontology
// data: one node per entity, one edge per schema relationship
func NewMemoryEngineFromOntology(nodes []models.SchemaNode, edges []models.SchemaEdge) (*MemoryEngine, error) {
	graphNodes := make([]models.GraphNode, 0, len(nodes))
	for _, node := range nodes {
		graphNodes = append(graphNodes, models.GraphNode{ID: node.EntityName, Label: node.EntityName})
	}
	graphEdges := make([]models.GraphEdge, 0, len(edges))
	for _, edge := range edges {
		graphEdges = append(graphEdges, models.GraphEdge{
			Source:     edge.SourceEntity,
			Target:     edge.TargetEntity,
			Label:      edge.SourceField,
			Kind:       string(edge.Kind),
			Confidence: edge.Confidence,
		})
	}
	return NewMemoryEngine(graphNodes, graphEdges)
}

// ref builds a NodeRef for a known node id
func (e *MemoryEngine) ref(id string) NodeRef {
	return NodeRef{ID: id, Label: e.labels[id]}
}

// Neighbors returns adjacent nodes in edge-discovery order, deduplicated
func (e *MemoryEngine) Neighbors(ctx context.Context, nodeID string, direction Direction) ([]NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := e.labels[nodeID]; !ok {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, models.ErrNodeNotFound)
	}

	var candidates []string
	switch direction {
	case DirectionOut:
		candidates = e.out[nodeID]
	case DirectionIn:
		candidates = e.in[nodeID]
	case DirectionBoth:
		candidates = append(append([]string{}, e.out[nodeID]...), e.in[nodeID]...)
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	seen := make(map[string]bool, len(candidates))
	refs := make([]NodeRef, 0, len(candidates))
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, e.ref(id))
	}

	return refs, nil
}

// ShortestPath runs an unweighted BFS over outgoing edges. Ties are
// broken by edge-discovery order because neighbors are expanded in the
// order their edges were loaded.
func (e *MemoryEngine) ShortestPath(ctx context.Context, fromID, toID string) ([]NodeRef, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if _, ok := e.labels[fromID]; !ok {
		return nil, false, fmt.Errorf("shortest path from %s: %w", fromID, models.ErrNodeNotFound)
	}
	if _, ok := e.labels[toID]; !ok {
		return nil, false, fmt.Errorf("shortest path to %s: %w", toID, models.ErrNodeNotFound)
	}

	if fromID == toID {
		return []NodeRef{e.ref(fromID)}, true, nil
	}

	parent := map[string]string{fromID: ""}
	queue := []string{fromID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range e.out[current] {
			if _, visited := parent[next]; visited {
				continue
			}
			parent[next] = current

			if next == toID {
				var path []NodeRef
				for id := toID; id != ""; id = parent[id] {
					path = append(path, e.ref(id))
				}
				// reverse into from -> to order
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true, nil
			}

			queue = append(queue, next)
		}
	}

	return nil, false, nil
}

// Traverse collects nodes reachable from startID within maxDepth hops,
// breadth-first and cycle-safe
func (e *MemoryEngine) Traverse(ctx context.Context, startID string, maxDepth int) ([]NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := e.labels[startID]; !ok {
		return nil, fmt.Errorf("traverse from %s: %w", startID, models.ErrNodeNotFound)
	}

	result := []NodeRef{e.ref(startID)}
	if maxDepth <= 0 {
		return result, nil
	}

	visited := map[string]bool{startID: true}
	frontier := []string{startID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for _, neighbor := range e.out[current] {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				result = append(result, e.ref(neighbor))
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	return result, nil
}

// Centrality dispatches to the selected ranking algorithm
func (e *MemoryEngine) Centrality(ctx context.Context, algorithm CentralityAlgorithm) (map[string]float64, error) {
	switch algorithm {
	case CentralityDegree:
		return e.degreeCentrality(), nil
	case CentralityBetweenness:
		return e.betweennessCentrality(ctx)
	case CentralityPageRank:
		return e.pageRank(ctx)
	default:
		return nil, fmt.Errorf("unknown centrality algorithm %q", algorithm)
	}
}
