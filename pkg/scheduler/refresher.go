// Package scheduler runs periodic snapshot refreshes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/schemalens/schemalens-go/pkg/coordinator"
	"github.com/schemalens/schemalens-go/pkg/models"
	"github.com/schemalens/schemalens-go/utils"
)

// Refresher rebuilds graph snapshots on a cron schedule so cached graphs
// track schema changes without waiting for a request-path miss.
type Refresher struct {
	coordinator *coordinator.Coordinator
	modes       []models.GraphMode
	schedule    string
	timeout     time.Duration
	cron        *cron.Cron
	entryID     cron.EntryID
	logger      *utils.Logger
}

// NewRefresher creates a refresher for the given modes. The schedule is a
// standard five-field cron expression.
func NewRefresher(coord *coordinator.Coordinator, schedule string, modes []models.GraphMode, timeout time.Duration) (*Refresher, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("at least one graph mode is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Refresher{
		coordinator: coord,
		modes:       modes,
		schedule:    schedule,
		timeout:     timeout,
		cron:        cron.New(),
		logger:      utils.GetLogger(),
	}, nil
}

// Start begins running refreshes on the configured schedule
func (r *Refresher) Start() error {
	entryID, err := r.cron.AddFunc(r.schedule, r.runOnce)
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	r.entryID = entryID
	r.cron.Start()

	r.logger.Info("Snapshot refresher started",
		utils.Component("scheduler"),
		utils.String("schedule", r.schedule),
		utils.Int("modes", len(r.modes)))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("Snapshot refresher stopped", utils.Component("scheduler"))
}

// runOnce rebuilds every configured mode from fresh discovery
func (r *Refresher) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	for _, mode := range r.modes {
		started := time.Now()
		snapshot, diag, err := r.coordinator.Refresh(ctx, mode)
		if err != nil {
			r.logger.Error("Scheduled refresh failed", err,
				utils.Component("scheduler"),
				utils.String("mode", string(mode)))
			continue
		}
		r.logger.Info("Scheduled refresh complete",
			utils.Component("scheduler"),
			utils.String("mode", string(mode)),
			utils.Int("nodes", len(snapshot.Nodes)),
			utils.Int("edges", len(snapshot.Edges)),
			utils.Int64("ontology_version", diag.OntologyVersion),
			utils.Float("elapsed_ms", float64(time.Since(started).Microseconds())/1000.0))
	}
}
