package application

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-triage/internal/domain"
)

// EvaluateBatch evaluates inputs concurrently and returns the evaluations
// in input order. At most concurrency evaluations run at once; a value of
// zero or less uses GOMAXPROCS.
//
// Evaluate itself never fails, so the only error is ctx.Err() when the
// context ends before every input has been scheduled.
func (e *Engine) EvaluateBatch(ctx context.Context, inputs []domain.Input, concurrency int) ([]domain.Evaluation, error) {
	if len(inputs) == 0 {
		return []domain.Evaluation{}, nil
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	results := make([]domain.Evaluation, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range inputs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, r := e.Evaluate(gctx, inputs[i])
			results[i] = domain.Evaluation{Classification: c, Resolution: r}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
