package graphquery

import (
	"context"
	"math"
)

// PageRank parameters
const (
	pageRankDamping   = 0.85
	pageRankMaxIter   = 100
	pageRankThreshold = 1e-6
)

// degreeCentrality scores each node by its total in+out degree
func (e *MemoryEngine) degreeCentrality() map[string]float64 {
	scores := make(map[string]float64, len(e.sortedIDs))
	for _, id := range e.sortedIDs {
		scores[id] = float64(len(e.out[id]) + len(e.in[id]))
	}
	return scores
}

// pageRank runs the iterative power method with damping 0.85 until the
// total per-iteration change drops below 1e-6, capped at 100 iterations.
// Hitting the cap is not an error; the last iterate is returned.
func (e *MemoryEngine) pageRank(ctx context.Context) (map[string]float64, error) {
	n := len(e.sortedIDs)
	if n == 0 {
		return map[string]float64{}, nil
	}

	ranks := make(map[string]float64, n)
	for _, id := range e.sortedIDs {
		ranks[id] = 1.0 / float64(n)
	}

	base := (1.0 - pageRankDamping) / float64(n)

	for iter := 0; iter < pageRankMaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := make(map[string]float64, n)
		for _, id := range e.sortedIDs {
			next[id] = base
		}

		// Rank from nodes without outgoing edges is spread evenly
		var danglingMass float64
		for _, id := range e.sortedIDs {
			outgoing := e.out[id]
			if len(outgoing) == 0 {
				danglingMass += ranks[id]
				continue
			}
			share := pageRankDamping * ranks[id] / float64(len(outgoing))
			for _, target := range outgoing {
				next[target] += share
			}
		}
		if danglingMass > 0 {
			spread := pageRankDamping * danglingMass / float64(n)
			for _, id := range e.sortedIDs {
				next[id] += spread
			}
		}

		var delta float64
		for _, id := range e.sortedIDs {
			delta += math.Abs(next[id] - ranks[id])
		}
		ranks = next

		if delta < pageRankThreshold {
			break
		}
	}

	return ranks, nil
}

// betweennessCentrality implements Brandes' algorithm for unweighted
// directed graphs. Nodes are processed in sorted order so scores are
// deterministic for a given graph.
func (e *MemoryEngine) betweennessCentrality(ctx context.Context) (map[string]float64, error) {
	scores := make(map[string]float64, len(e.sortedIDs))
	for _, id := range e.sortedIDs {
		scores[id] = 0
	}

	for _, source := range e.sortedIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// BFS from source recording predecessors and path counts
		var stack []string
		predecessors := make(map[string][]string)
		pathCount := map[string]float64{source: 1}
		distance := map[string]int{source: 0}
		queue := []string{source}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			stack = append(stack, current)

			for _, next := range e.out[current] {
				if _, seen := distance[next]; !seen {
					distance[next] = distance[current] + 1
					queue = append(queue, next)
				}
				if distance[next] == distance[current]+1 {
					pathCount[next] += pathCount[current]
					predecessors[next] = append(predecessors[next], current)
				}
			}
		}

		// Accumulate dependencies in reverse BFS order
		dependency := make(map[string]float64)
		for i := len(stack) - 1; i >= 0; i-- {
			node := stack[i]
			for _, pred := range predecessors[node] {
				dependency[pred] += (pathCount[pred] / pathCount[node]) * (1 + dependency[node])
			}
			if node != source {
				scores[node] += dependency[node]
			}
		}
	}

	return scores, nil
}
