package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/pidloop/internal/dynamo"
	"golang.org/x/sync/errgroup"
)

// Job is one independent run. Controllers and plants are stateful, so
// every job must own its Simulator.
type Job struct {
	Name string
	Sim  *Simulator
	X0   dynamo.State
	Cfg  dynamo.Config
}

// RunAll runs jobs concurrently, at most workers at a time, and returns
// results in job order. The first failure cancels the remaining jobs.
func RunAll(ctx context.Context, jobs []Job, workers int) ([]*dynamo.Result, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]*dynamo.Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := job.Sim.Run(ctx, job.X0, job.Cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
