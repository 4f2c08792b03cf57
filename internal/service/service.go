// Package service ties the generation engine to the batch recorder and
// absorbs the race window between the existence check and the commit.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kyralabs/proxymint/internal/generator"
	"github.com/kyralabs/proxymint/internal/proxyfmt"
	"github.com/kyralabs/proxymint/internal/store"
	log "github.com/sirupsen/logrus"
)

// commitPasses bounds retries after commit-time unique violations. Each
// pass re-checks the survivors and re-draws the deficit with fresh
// randomness.
const commitPasses = 3

// Recorder persists accepted batches and re-answers existence checks when
// a commit loses the uniqueness race. *store.Store satisfies it.
type Recorder interface {
	FindExisting(ctx context.Context, candidates []string) (map[string]struct{}, error)
	CommitBatch(ctx context.Context, apiKeyID uint64, records []proxyfmt.Record) (string, error)
}

// Service exposes the generation workflow consumed by the HTTP layer.
type Service struct {
	engine *generator.Engine
	store  Recorder
}

// New constructs a Service.
func New(engine *generator.Engine, st Recorder) *Service {
	return &Service{engine: engine, store: st}
}

// Outcome is the result of one generate-and-commit call.
type Outcome struct {
	BatchID   string
	Records   []proxyfmt.Record
	Shortfall int
}

// Generate runs the engine without persisting anything. Useful for
// dry-run inspection before committing.
func (s *Service) Generate(ctx context.Context, t proxyfmt.Template, quantity int) (generator.Result, error) {
	return s.engine.Generate(ctx, t, quantity)
}

// GenerateAndCommit generates up to quantity distinct proxy strings and
// commits them as one batch. A commit-time unique violation means a
// concurrent caller won the race for some string after our existence
// check; the losers are dropped, replacements are drawn, and the commit is
// retried.
func (s *Service) GenerateAndCommit(ctx context.Context, apiKeyID uint64, t proxyfmt.Template, quantity int) (Outcome, error) {
	res, err := s.engine.Generate(ctx, t, quantity)
	if err != nil {
		return Outcome{}, err
	}
	accepted := res.Accepted

	var commitErr error
	for pass := 0; pass < commitPasses; pass++ {
		batchID, errCommit := s.store.CommitBatch(ctx, apiKeyID, accepted)
		if errCommit == nil {
			return Outcome{
				BatchID:   batchID,
				Records:   accepted,
				Shortfall: quantity - len(accepted),
			}, nil
		}
		if !errors.Is(errCommit, store.ErrDuplicateString) {
			return Outcome{}, errCommit
		}
		commitErr = errCommit

		log.WithFields(log.Fields{
			"api_key_id": apiKeyID,
			"pass":       pass + 1,
			"accepted":   len(accepted),
		}).Warn("batch commit lost uniqueness race, redrawing")

		survivors, errFilter := s.dropNowExisting(ctx, accepted)
		if errFilter != nil {
			return Outcome{}, errFilter
		}
		accepted = survivors

		deficit := quantity - len(accepted)
		if deficit > 0 {
			redraw, errRedraw := s.engine.Generate(ctx, t, deficit)
			switch {
			case errRedraw == nil:
				accepted = mergeDistinct(accepted, redraw.Accepted)
			case errors.Is(errRedraw, generator.ErrExhaustedRetries):
				// Keep the survivors; the deficit becomes shortfall.
			default:
				return Outcome{}, errRedraw
			}
		}
		if len(accepted) == 0 {
			return Outcome{}, fmt.Errorf("service: redraw: %w", generator.ErrExhaustedRetries)
		}
	}
	return Outcome{}, fmt.Errorf("service: commit retries exhausted: %w", commitErr)
}

// dropNowExisting filters out records whose strings were persisted by a
// concurrent caller since the last existence check.
func (s *Service) dropNowExisting(ctx context.Context, records []proxyfmt.Record) ([]proxyfmt.Record, error) {
	candidates := make([]string, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, rec.ProxyString)
	}
	existing, err := s.store.FindExisting(ctx, candidates)
	if err != nil {
		return nil, err
	}
	kept := records[:0]
	for _, rec := range records {
		if _, collides := existing[rec.ProxyString]; collides {
			continue
		}
		kept = append(kept, rec)
	}
	return kept, nil
}

func mergeDistinct(base, extra []proxyfmt.Record) []proxyfmt.Record {
	seen := make(map[string]struct{}, len(base))
	for _, rec := range base {
		seen[rec.ProxyString] = struct{}{}
	}
	for _, rec := range extra {
		if _, dup := seen[rec.ProxyString]; dup {
			continue
		}
		seen[rec.ProxyString] = struct{}{}
		base = append(base, rec)
	}
	return base
}
