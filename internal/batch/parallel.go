package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/deluair/alphagenome/internal/analyzer"
)

// WorkItem is one input tagged with its position in the batch.
type WorkItem struct {
	Seq   int
	Input Input
}

// WorkResult holds the prediction outcome for a single work item.
type WorkResult struct {
	Seq    int
	Input  Input
	Result *analyzer.Result
	Err    error
}

// ParallelPredict runs predictions for work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence
// order). Use OrderedCollect to consume them in sequence-number order.
// Workers never stop early: every item produces exactly one result.
func ParallelPredict(ctx context.Context, p Predictor, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = 1
	}

	results := make(chan WorkResult, 2*workers)

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for item := range items {
				res, err := p.Predict(ctx, item.Input.request())
				results <- WorkResult{
					Seq:    item.Seq,
					Input:  item.Input,
					Result: res,
					Err:    err,
				}
			}
			return nil
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
