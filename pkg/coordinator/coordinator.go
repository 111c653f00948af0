// Package coordinator wires discovery, the ontology store, and the
// snapshot cache into one entry point for building knowledge graphs.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schemalens/schemalens-go/pkg/discovery"
	"github.com/schemalens/schemalens-go/pkg/graphbuilder"
	"github.com/schemalens/schemalens-go/pkg/models"
	"github.com/schemalens/schemalens-go/pkg/ontologystore"
	"github.com/schemalens/schemalens-go/pkg/snapshotcache"
	"github.com/schemalens/schemalens-go/utils"
)

// CacheState describes how much reusable state the coordinator found for
// the last build of a mode.
type CacheState string

const (
	// StateCold means neither a snapshot nor a valid ontology existed
	StateCold CacheState = "cold"
	// StateOntologyOnly means the ontology was reusable but the snapshot
	// had to be rebuilt
	StateOntologyOnly CacheState = "ontology_only"
	// StateFresh means a current snapshot was served straight from cache
	StateFresh CacheState = "fresh"
)

// EntityProvider supplies the entity metadata that discovery runs over.
// Implementations typically read connector schemas or registry exports.
type EntityProvider interface {
	Entities(ctx context.Context) ([]models.Entity, error)
}

// EntityProviderFunc adapts a function to the EntityProvider interface
type EntityProviderFunc func(ctx context.Context) ([]models.Entity, error)

func (f EntityProviderFunc) Entities(ctx context.Context) ([]models.Entity, error) {
	return f(ctx)
}

// Coordinator orchestrates the build pipeline: snapshot cache first,
// then ontology store, then full discovery, writing each rebuilt tier
// back on the way out.
type Coordinator struct {
	ontology ontologystore.OntologyStore
	cache    snapshotcache.SnapshotCache
	provider EntityProvider
	engine   *discovery.Engine
	logger   *utils.Logger

	mu     sync.Mutex
	states map[models.GraphMode]CacheState
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithDiscoveryEngine replaces the default rule set
func WithDiscoveryEngine(engine *discovery.Engine) Option {
	return func(c *Coordinator) { c.engine = engine }
}

// WithLogger replaces the global logger
func WithLogger(logger *utils.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func New(ontology ontologystore.OntologyStore, cache snapshotcache.SnapshotCache, provider EntityProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		ontology: ontology,
		cache:    cache,
		provider: provider,
		engine:   discovery.NewEngine(discovery.DefaultRules()),
		logger:   utils.GetLogger(),
		states:   make(map[models.GraphMode]CacheState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the cache state observed by the last BuildGraph call for
// the mode, or StateCold before the first build.
func (c *Coordinator) State(mode models.GraphMode) CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[mode]; ok {
		return state
	}
	return StateCold
}

func (c *Coordinator) setState(mode models.GraphMode, state CacheState) {
	c.mu.Lock()
	c.states[mode] = state
	c.mu.Unlock()
}

// BuildGraph returns a render-ready snapshot for the mode along with
// build diagnostics. With useCache it serves a current cached snapshot
// when one exists; otherwise it rebuilds from the ontology store, running
// full discovery first when the store holds no usable ontology.
func (c *Coordinator) BuildGraph(ctx context.Context, mode models.GraphMode, useCache bool) (*models.GraphSnapshot, *models.BuildDiagnostics, error) {
	started := time.Now()

	if useCache {
		snapshot, hit, err := c.cache.Get(ctx, mode)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot cache read failed: %w", err)
		}
		if hit {
			c.setState(mode, StateFresh)
			c.logger.Debug("Serving cached snapshot",
				utils.Component("coordinator"),
				utils.String("mode", string(mode)),
				utils.Int64("ontology_version", snapshot.OntologyVersion))
			return snapshot, c.diagnostics(true, started, snapshot.OntologyVersion), nil
		}
	}

	valid, err := c.ontology.IsValid(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ontology validity check failed: %w", err)
	}
	if !valid {
		c.setState(mode, StateCold)
		if err := c.rediscover(ctx); err != nil {
			return nil, nil, err
		}
	}
	// Discovery succeeded or was not needed: the ontology is reusable
	c.setState(mode, StateOntologyOnly)

	nodes, edges, version, err := c.ontology.GetAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ontology read failed: %w", err)
	}

	snapshot, err := graphbuilder.BuildSnapshot(mode, nodes, edges, version)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot build failed: %w", err)
	}

	writeBackFailed := false
	if err := c.cache.Put(ctx, mode, snapshot); err != nil {
		// Serve the freshly built snapshot even when the write-back fails;
		// the state stays ontology_only so the next build rebuilds again
		writeBackFailed = true
		c.logger.Warn("Snapshot write-back failed",
			utils.Component("coordinator"),
			utils.String("mode", string(mode)),
			utils.Error(err))
	} else {
		c.setState(mode, StateFresh)
	}

	c.logger.Info("Built graph snapshot",
		utils.Component("coordinator"),
		utils.String("mode", string(mode)),
		utils.String("state", string(c.State(mode))),
		utils.Int("nodes", len(snapshot.Nodes)),
		utils.Int("edges", len(snapshot.Edges)),
		utils.Int64("ontology_version", version))

	diag := c.diagnostics(false, started, version)
	diag.CacheWriteFailed = writeBackFailed
	return snapshot, diag, nil
}

// rediscover runs full discovery over the provider's entities and merges
// the result into the ontology store.
func (c *Coordinator) rediscover(ctx context.Context) error {
	entities, err := c.provider.Entities(ctx)
	if err != nil {
		return fmt.Errorf("entity provider failed: %w", err)
	}

	edges, warnings, err := c.engine.Discover(ctx, entities)
	if err != nil {
		return fmt.Errorf("relationship discovery failed: %w", err)
	}
	for _, warning := range warnings {
		c.logger.Warn("Discovery warning",
			utils.Component("coordinator"),
			utils.String("kind", warning.Kind),
			utils.String("source", warning.Source),
			utils.String("detail", warning.Message))
	}

	nodes := make([]models.SchemaNode, 0, len(entities))
	for i := range entities {
		nodes = append(nodes, models.NodeFromEntity(&entities[i]))
	}

	version, err := c.ontology.Upsert(ctx, nodes, edges)
	if err != nil {
		return fmt.Errorf("ontology upsert failed: %w", err)
	}

	c.logger.Info("Discovery complete",
		utils.Component("coordinator"),
		utils.Int("entities", len(entities)),
		utils.Int("edges", len(edges)),
		utils.Int("warnings", len(warnings)),
		utils.Int64("ontology_version", version))
	return nil
}

// Refresh forces a rediscovery pass regardless of ontology validity,
// then rebuilds and caches the mode's snapshot.
func (c *Coordinator) Refresh(ctx context.Context, mode models.GraphMode) (*models.GraphSnapshot, *models.BuildDiagnostics, error) {
	if err := c.rediscover(ctx); err != nil {
		return nil, nil, err
	}
	return c.BuildGraph(ctx, mode, false)
}

// InvalidateCache drops the cached snapshot for the mode; an empty mode
// drops every mode.
func (c *Coordinator) InvalidateCache(ctx context.Context, mode models.GraphMode) error {
	if err := c.cache.Invalidate(ctx, mode); err != nil {
		return fmt.Errorf("cache invalidation failed: %w", err)
	}
	c.mu.Lock()
	if mode == "" {
		c.states = make(map[models.GraphMode]CacheState)
	} else {
		delete(c.states, mode)
	}
	c.mu.Unlock()
	return nil
}

// OverrideRelationship applies a manual verification to one edge and
// invalidates all cached snapshots when the ontology actually changed.
func (c *Coordinator) OverrideRelationship(ctx context.Context, key models.EdgeKey, kind models.RelationshipKind, force bool) error {
	before, err := c.ontology.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("ontology version read failed: %w", err)
	}

	if err := c.ontology.Override(ctx, key, kind, force); err != nil {
		return err
	}

	after, err := c.ontology.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("ontology version read failed: %w", err)
	}
	if after == before {
		return nil
	}

	c.logger.Info("Relationship overridden",
		utils.Component("coordinator"),
		utils.String("edge", key.String()),
		utils.String("kind", string(kind)),
		utils.Int64("ontology_version", after))
	return c.InvalidateCache(ctx, "")
}

func (c *Coordinator) diagnostics(cacheUsed bool, started time.Time, version int64) *models.BuildDiagnostics {
	return &models.BuildDiagnostics{
		CacheUsed:       cacheUsed,
		BuildTimeMS:     float64(time.Since(started).Microseconds()) / 1000.0,
		OntologyVersion: version,
	}
}
