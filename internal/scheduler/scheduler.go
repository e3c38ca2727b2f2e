// Package scheduler runs the background compaction/memory-summarizer
// ticks (spec §4.8's auto-compaction is threshold-triggered per turn;
// this adds a time-triggered sweep so a workspace that goes quiet still
// gets compacted) on a cron schedule.
//
// Grounded on haasonsaas-nexus/internal/cron/schedule.go's cron.NewParser
// options (SecondOptional|Minute|Hour|Dom|Month|Dow|Descriptor, so both
// "@every 1h" and 5-field expressions parse), adapted from that package's
// compute-the-next-run-time helper into a live robfig/cron/v3 scheduler
// since this package needs an actual running ticker, not just Next().
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/obs"
)

var parser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// CompactionScheduler periodically runs memory.SpawnBackgroundCompaction
// against one workspace's memory log.
type CompactionScheduler struct {
	cr     *cron.Cron
	logger *slog.Logger
}

// NewCompactionScheduler builds a scheduler that fires compaction on
// expr (e.g. "@every 1h" or a 5-field cron expression) until Stop is
// called. log/store/summarizer are the same collaborators
// memory.RunCompaction needs elsewhere; metrics may be nil.
func NewCompactionScheduler(
	expr string,
	logger *slog.Logger,
	log *memory.Log,
	store *memory.CompactionStore,
	summarizer memory.Summarizer,
	metrics *obs.Metrics,
) (*CompactionScheduler, error) {
	if _, err := parser.Parse(expr); err != nil {
		return nil, err
	}

	cr := cron.New(cron.WithParser(parser))
	_, err := cr.AddFunc(expr, func() {
		memory.SpawnBackgroundCompaction(context.Background(), logger, log, store, summarizer, metrics)
	})
	if err != nil {
		return nil, err
	}

	return &CompactionScheduler{cr: cr, logger: logger}, nil
}

// Start begins running the schedule in a background goroutine managed by
// the underlying cron.Cron.
func (s *CompactionScheduler) Start() {
	s.cr.Start()
}

// Stop halts the schedule and waits for any in-flight tick to finish
// being dispatched (not for the compaction goroutine it spawned, which is
// itself fire-and-forget).
func (s *CompactionScheduler) Stop() {
	<-s.cr.Stop().Done()
}
