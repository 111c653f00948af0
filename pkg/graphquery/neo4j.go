package graphquery

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/schemalens/schemalens-go/pkg/models"
)

// Neo4jEngine is a remote GraphQuery backend over a Neo4j server. Nodes
// are (:SchemaEntity {id, label}) and relationships [:RELATES_TO]. It
// implements the same four operations as MemoryEngine, so the
// coordinator and callers never see which backend answered.
type Neo4jEngine struct {
	driver neo4j.DriverWithContext
	dbName string
}

// NewNeo4jEngine connects a remote graph backend
func NewNeo4jEngine(ctx context.Context, uri, username, password, dbName string) (*Neo4jEngine, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity check failed: %w", err)
	}
	return &Neo4jEngine{driver: driver, dbName: dbName}, nil
}

// Close releases the underlying driver
func (e *Neo4jEngine) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

// Load replaces the remote graph content with the given snapshot collections
func (e *Neo4jEngine) Load(ctx context.Context, nodes []models.GraphNode, edges []models.GraphEdge) error {
	if _, err := e.run(ctx, "MATCH (n:SchemaEntity) DETACH DELETE n", nil); err != nil {
		return fmt.Errorf("failed to clear graph: %w", err)
	}

	for _, node := range nodes {
		_, err := e.run(ctx,
			"MERGE (n:SchemaEntity {id: $id}) SET n.label = $label",
			map[string]any{"id": node.ID, "label": node.Label})
		if err != nil {
			return fmt.Errorf("failed to load node %s: %w", node.ID, err)
		}
	}

	for _, edge := range edges {
		_, err := e.run(ctx, `
			MATCH (a:SchemaEntity {id: $source}), (b:SchemaEntity {id: $target})
			MERGE (a)-[r:RELATES_TO]->(b)
			SET r.kind = $kind, r.confidence = $confidence`,
			map[string]any{
				"source": edge.Source, "target": edge.Target,
				"kind": edge.Kind, "confidence": edge.Confidence,
			})
		if err != nil {
			return fmt.Errorf("failed to load edge %s->%s: %w", edge.Source, edge.Target, err)
		}
	}

	return nil
}

// run executes one Cypher query with automatic session management
func (e *Neo4jEngine) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, e.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.dbName))
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}

// refFromRecord reads an (id, label) pair from one result record
func refFromRecord(record *neo4j.Record) NodeRef {
	ref := NodeRef{}
	if id, ok := record.Get("id"); ok {
		ref.ID, _ = id.(string)
	}
	if label, ok := record.Get("label"); ok {
		ref.Label, _ = label.(string)
	}
	return ref
}

// Neighbors returns adjacent nodes in the given direction
func (e *Neo4jEngine) Neighbors(ctx context.Context, nodeID string, direction Direction) ([]NodeRef, error) {
	var pattern string
	switch direction {
	case DirectionOut:
		pattern = "(a:SchemaEntity {id: $id})-[:RELATES_TO]->(b:SchemaEntity)"
	case DirectionIn:
		pattern = "(a:SchemaEntity {id: $id})<-[:RELATES_TO]-(b:SchemaEntity)"
	case DirectionBoth:
		pattern = "(a:SchemaEntity {id: $id})-[:RELATES_TO]-(b:SchemaEntity)"
	default:
		return nil, fmt.Errorf("unknown direction %q", direction)
	}

	exists, err := e.run(ctx, "MATCH (n:SchemaEntity {id: $id}) RETURN n.id AS id", map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}
	if len(exists.Records) == 0 {
		return nil, fmt.Errorf("neighbors of %s: %w", nodeID, models.ErrNodeNotFound)
	}

	result, err := e.run(ctx,
		fmt.Sprintf("MATCH %s RETURN DISTINCT b.id AS id, b.label AS label", pattern),
		map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}

	refs := make([]NodeRef, 0, len(result.Records))
	for _, record := range result.Records {
		refs = append(refs, refFromRecord(record))
	}
	return refs, nil
}

// ShortestPath delegates to Neo4j's shortestPath planner
func (e *Neo4jEngine) ShortestPath(ctx context.Context, fromID, toID string) ([]NodeRef, bool, error) {
	if fromID == toID {
		result, err := e.run(ctx, "MATCH (n:SchemaEntity {id: $id}) RETURN n.id AS id, n.label AS label",
			map[string]any{"id": fromID})
		if err != nil {
			return nil, false, err
		}
		if len(result.Records) == 0 {
			return nil, false, fmt.Errorf("shortest path from %s: %w", fromID, models.ErrNodeNotFound)
		}
		return []NodeRef{refFromRecord(result.Records[0])}, true, nil
	}

	result, err := e.run(ctx, `
		MATCH (a:SchemaEntity {id: $from}), (b:SchemaEntity {id: $to})
		MATCH p = shortestPath((a)-[:RELATES_TO*]->(b))
		RETURN [n IN nodes(p) | n.id] AS ids, [n IN nodes(p) | n.label] AS labels`,
		map[string]any{"from": fromID, "to": toID})
	if err != nil {
		return nil, false, err
	}
	if len(result.Records) == 0 {
		return nil, false, nil
	}

	record := result.Records[0]
	rawIDs, _ := record.Get("ids")
	rawLabels, _ := record.Get("labels")
	ids, _ := rawIDs.([]any)
	labels, _ := rawLabels.([]any)

	path := make([]NodeRef, 0, len(ids))
	for i := range ids {
		ref := NodeRef{}
		ref.ID, _ = ids[i].(string)
		if i < len(labels) {
			ref.Label, _ = labels[i].(string)
		}
		path = append(path, ref)
	}
	return path, true, nil
}

// Traverse collects nodes reachable within maxDepth hops
func (e *Neo4jEngine) Traverse(ctx context.Context, startID string, maxDepth int) ([]NodeRef, error) {
	start, err := e.run(ctx, "MATCH (n:SchemaEntity {id: $id}) RETURN n.id AS id, n.label AS label",
		map[string]any{"id": startID})
	if err != nil {
		return nil, err
	}
	if len(start.Records) == 0 {
		return nil, fmt.Errorf("traverse from %s: %w", startID, models.ErrNodeNotFound)
	}

	refs := []NodeRef{refFromRecord(start.Records[0])}
	if maxDepth <= 0 {
		return refs, nil
	}

	result, err := e.run(ctx, fmt.Sprintf(`
		MATCH (a:SchemaEntity {id: $id})-[:RELATES_TO*1..%d]->(b:SchemaEntity)
		WHERE b.id <> $id
		RETURN DISTINCT b.id AS id, b.label AS label`, maxDepth),
		map[string]any{"id": startID})
	if err != nil {
		return nil, err
	}

	for _, record := range result.Records {
		refs = append(refs, refFromRecord(record))
	}
	return refs, nil
}

// Centrality answers degree queries in Cypher and delegates the
// iterative algorithms to an in-memory engine over the fetched graph
func (e *Neo4jEngine) Centrality(ctx context.Context, algorithm CentralityAlgorithm) (map[string]float64, error) {
	switch algorithm {
	case CentralityDegree:
		result, err := e.run(ctx, `
			MATCH (n:SchemaEntity)
			RETURN n.id AS id, COUNT { (n)-[:RELATES_TO]-() } AS degree`, nil)
		if err != nil {
			return nil, err
		}
		scores := make(map[string]float64, len(result.Records))
		for _, record := range result.Records {
			id, _ := record.Get("id")
			degree, _ := record.Get("degree")
			idStr, _ := id.(string)
			degreeInt, _ := degree.(int64)
			scores[idStr] = float64(degreeInt)
		}
		return scores, nil

	case CentralityBetweenness, CentralityPageRank:
		memory, err := e.fetchIntoMemory(ctx)
		if err != nil {
			return nil, err
		}
		return memory.Centrality(ctx, algorithm)

	default:
		return nil, fmt.Errorf("unknown centrality algorithm %q", algorithm)
	}
}

// fetchIntoMemory pulls the remote graph into a MemoryEngine
func (e *Neo4jEngine) fetchIntoMemory(ctx context.Context) (*MemoryEngine, error) {
	nodeResult, err := e.run(ctx, "MATCH (n:SchemaEntity) RETURN n.id AS id, n.label AS label ORDER BY n.id", nil)
	if err != nil {
		return nil, err
	}
	var nodes []models.GraphNode
	for _, record := range nodeResult.Records {
		ref := refFromRecord(record)
		nodes = append(nodes, models.GraphNode{ID: ref.ID, Label: ref.Label})
	}

	edgeResult, err := e.run(ctx, `
		MATCH (a:SchemaEntity)-[r:RELATES_TO]->(b:SchemaEntity)
		RETURN a.id AS source, b.id AS target ORDER BY a.id, b.id`, nil)
	if err != nil {
		return nil, err
	}
	var edges []models.GraphEdge
	for _, record := range edgeResult.Records {
		source, _ := record.Get("source")
		target, _ := record.Get("target")
		edge := models.GraphEdge{}
		edge.Source, _ = source.(string)
		edge.Target, _ = target.(string)
		edges = append(edges, edge)
	}

	return NewMemoryEngine(nodes, edges)
}
