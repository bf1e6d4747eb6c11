package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// EventPruner is the subset of the store the retention job uses.
type EventPruner interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob prunes old room events from the database.
// It runs on a configurable interval (default: 1 hour) and deletes
// events older than the configured maximum age (default: 30 days).
type RetentionJob struct {
	store    EventPruner
	logger   *log.Logger
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	now func() time.Time
}

// NewRetentionJob creates a new retention job.
func NewRetentionJob(s EventPruner, logger *log.Logger, interval, maxAge time.Duration) *RetentionJob {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	if maxAge == 0 {
		maxAge = 30 * 24 * time.Hour
	}
	return &RetentionJob{
		store:    s,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the background job.
func (j *RetentionJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("RetentionJob: started (interval=%v, max_age=%v)", j.interval, j.maxAge)
}

// Stop gracefully stops the background job.
func (j *RetentionJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("RetentionJob: stopped")
}

func (j *RetentionJob) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.prune()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.prune()
		case <-j.stopCh:
			return
		}
	}
}

func (j *RetentionJob) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.maxAge)
	deleted, err := j.store.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		j.logger.Printf("RetentionJob: failed to prune events: %v", err)
		return
	}
	if deleted > 0 {
		j.logger.Printf("RetentionJob: pruned %d events older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}
