package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/logging"
)

// ErrDuplicateExperiment is returned when two batch entries would write to the
// same output directory
var ErrDuplicateExperiment = errors.New("duplicate experiment identifier in batch")

// BatchItem is the outcome of one batch entry
type BatchItem struct {
	Config *config.Config
	Result *Result
	Err    error
}

// RunBatch runs independent experiments with at most parallel concurrent
// runs. Entries are checked up front: invalid entries fail on their own, and
// two valid entries sharing an experiment identifier reject the whole batch.
func (r *Runner) RunBatch(ctx context.Context, cfgs []*config.Config, parallel int) ([]BatchItem, error) {
	if parallel <= 0 {
		parallel = 1
	}

	items := make([]BatchItem, len(cfgs))
	seen := make(map[string]int, len(cfgs))
	for i, cfg := range cfgs {
		items[i].Config = cfg
		if cfg == nil {
			items[i].Err = fmt.Errorf("%w: no configuration", config.ErrInvalid)
			continue
		}
		if err := cfg.Validate(); err != nil {
			items[i].Err = err
			continue
		}
		id := IDFromConfig(cfg)
		if j, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: entries %d and %d both map to %s", ErrDuplicateExperiment, j, i, id)
		}
		seen[id] = i
	}

	r.logger().Info("Starting batch", logging.Fields{
		"experiments": len(cfgs),
		"parallel":    parallel,
	})

	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i := range items {
		if items[i].Err != nil {
			continue
		}
		wg.Add(1)
		go func(item *BatchItem) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				item.Err = ctx.Err()
				return
			}
			defer func() { <-sem }()
			item.Result, item.Err = r.Run(ctx, item.Config)
		}(&items[i])
	}
	wg.Wait()

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	r.logger().Info("Batch finished", logging.Fields{
		"experiments": len(items),
		"failed":      failed,
	})
	return items, nil
}
