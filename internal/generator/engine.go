// Package generator drives bulk proxy string synthesis: round-based
// candidate generation, duplicate filtering through the store, and a hard
// attempt budget with partial-success reporting.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kyralabs/proxymint/internal/country"
	"github.com/kyralabs/proxymint/internal/proxyfmt"
	log "github.com/sirupsen/logrus"
)

const (
	// MaxQuantity is the hard ceiling on a single generation request.
	MaxQuantity = 5000
	// roundSize caps the candidates synthesized per existence check.
	roundSize = 100
	// attemptsPerUnit scales the total attempt budget with quantity.
	attemptsPerUnit = 10
)

// ErrInvalidQuantity reports a requested amount outside [1,MaxQuantity].
var ErrInvalidQuantity = errors.New("generator: quantity out of range")

// ErrExhaustedRetries reports that every synthesized candidate collided
// within the attempt budget.
var ErrExhaustedRetries = errors.New("generator: retry budget exhausted")

// ErrUnknownCountry reports a template country the resolver cannot map.
var ErrUnknownCountry = errors.New("generator: unknown country")

// MissingFieldError names the empty template fields of a rejected request.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "generator: missing template fields: " + strings.Join(e.Fields, ", ")
}

// Oracle answers which of a candidate batch of proxy strings already exist
// in the store. It is the engine's only I/O dependency.
type Oracle interface {
	FindExisting(ctx context.Context, candidates []string) (map[string]struct{}, error)
}

// Result carries the outcome of one generation call. Shortfall is non-zero
// when the budget ran out before the full quantity was accepted; callers
// surface it rather than treating it as an error.
type Result struct {
	Accepted  []proxyfmt.Record
	Shortfall int
	Attempts  int
}

// Engine orchestrates candidate synthesis against a duplicate oracle.
type Engine struct {
	oracle Oracle
}

// New constructs an Engine over the given oracle.
func New(oracle Oracle) *Engine {
	return &Engine{oracle: oracle}
}

// Generate synthesizes up to quantity distinct proxy strings for the
// template. It persists nothing; the accepted set is handed to the batch
// recorder as a separate step.
func (e *Engine) Generate(ctx context.Context, t proxyfmt.Template, quantity int) (Result, error) {
	if quantity < 1 || quantity > MaxQuantity {
		return Result{}, fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidQuantity, quantity, MaxQuantity)
	}
	if missing := missingFields(t); len(missing) > 0 {
		return Result{}, &MissingFieldError{Fields: missing}
	}
	code, ok := country.Resolve(t.Country)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCountry, t.Country)
	}

	budget := quantity * attemptsPerUnit
	accepted := make([]proxyfmt.Record, 0, quantity)
	seen := make(map[string]struct{}, quantity)
	attempts := 0

	for len(accepted) < quantity && attempts < budget {
		want := quantity - len(accepted)
		if want > roundSize {
			want = roundSize
		}
		if left := budget - attempts; want > left {
			want = left
		}

		round := make([]proxyfmt.Record, 0, want)
		candidates := make([]string, 0, want)
		for i := 0; i < want; i++ {
			attempts++
			rec := proxyfmt.Format(t, code)
			if _, dup := seen[rec.ProxyString]; dup {
				continue
			}
			seen[rec.ProxyString] = struct{}{}
			round = append(round, rec)
			candidates = append(candidates, rec.ProxyString)
		}
		if len(round) == 0 {
			continue
		}

		existing, err := e.oracle.FindExisting(ctx, candidates)
		if err != nil {
			return Result{}, fmt.Errorf("generator: existence check: %w", err)
		}
		kept := 0
		for _, rec := range round {
			if _, collides := existing[rec.ProxyString]; collides {
				continue
			}
			accepted = append(accepted, rec)
			kept++
		}
		log.WithFields(log.Fields{
			"round_size": len(round),
			"kept":       kept,
			"accepted":   len(accepted),
			"attempts":   attempts,
		}).Debug("generation round complete")
	}

	if len(accepted) == 0 {
		return Result{}, fmt.Errorf("%w: %d attempts, all collided", ErrExhaustedRetries, attempts)
	}
	return Result{
		Accepted:  accepted,
		Shortfall: quantity - len(accepted),
		Attempts:  attempts,
	}, nil
}

func missingFields(t proxyfmt.Template) []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"host", t.Host},
		{"port", t.Port},
		{"user_id", t.UserID},
		{"country", t.Country},
		{"password", t.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
