// Package resolver decides for each candidate entity whether it merges into
// an existing workspace entity or becomes a new one.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/workspacer/helper"
	"github.com/siherrmann/workspacer/model"
	"golang.org/x/sync/errgroup"
)

// ErrOracleUnavailable marks a similarity oracle failure or timeout
var ErrOracleUnavailable = errors.New("similarity oracle unavailable")

// Oracle scores the similarity of two entity references in [0, 1].
// Implementations must not mutate their inputs.
type Oracle interface {
	Score(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error)
}

// OracleFunc adapts a function to the Oracle interface
type OracleFunc func(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error)

// Score implements Oracle
func (f OracleFunc) Score(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error) {
	return f(ctx, a, b)
}

// Decision is the resolution outcome for one candidate, in candidate input
// order. Exactly one of MergeInto, CreateNew or Malformed applies.
type Decision struct {
	LocalID   string  `json:"local_id"`
	MergeInto string  `json:"merge_into,omitempty"`
	CreateNew bool    `json:"create_new,omitempty"`
	Malformed bool    `json:"malformed,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Degraded  bool    `json:"degraded,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// Resolver runs the read-only resolve phase
type Resolver struct {
	oracle    Oracle
	threshold float64
	timeout   time.Duration
	workers   int
	logger    *slog.Logger
}

// NewResolver creates a resolver from the workspace configuration. A nil
// oracle disables similarity matching, leaving exact alias matching only.
func NewResolver(oracle Oracle, config *model.Config, logger *slog.Logger) *Resolver {
	workers := config.ResolveWorkers
	if workers < 1 {
		workers = 1
	}
	return &Resolver{
		oracle:    oracle,
		threshold: config.SimilarityThreshold,
		timeout:   config.OracleTimeout,
		workers:   workers,
		logger:    logger,
	}
}

// Resolve classifies every candidate against the existing entities of the
// same type. Candidates resolve independently and in parallel against the
// same pre-batch view, bounded by the configured worker count. The call
// reads the workspace but never mutates it; context cancellation aborts the
// whole phase with no side effects.
func (r *Resolver) Resolve(ctx context.Context, candidates []model.CandidateEntity, existing map[model.EntityType][]*model.Entity) ([]Decision, error) {
	decisions := make([]Decision, len(candidates))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)
	for i := range candidates {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			decisions[i] = r.resolveOne(groupCtx, candidates[i], existing[candidates[i].Type])
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, helper.NewError("resolving batch", err)
	}

	return decisions, nil
}

func (r *Resolver) resolveOne(ctx context.Context, candidate model.CandidateEntity, existing []*model.Entity) Decision {
	if strings.TrimSpace(candidate.Name) == "" {
		return Decision{LocalID: candidate.LocalID, Malformed: true, Reason: "missing name"}
	}
	if !model.ValidEntityType(candidate.Type) {
		return Decision{LocalID: candidate.LocalID, Malformed: true, Reason: fmt.Sprintf("unknown entity type %q", candidate.Type)}
	}

	// Exact alias match wins outright, the oracle is not consulted.
	aliases := candidateAliases(candidate)
	for _, entity := range existing {
		for _, alias := range entity.Aliases {
			if _, ok := aliases[model.NormalizeAlias(alias)]; ok {
				return Decision{
					LocalID:   candidate.LocalID,
					MergeInto: entity.ID,
					Score:     1.0,
					Reason:    fmt.Sprintf("exact alias match on %q", alias),
				}
			}
		}
	}

	if r.oracle == nil || len(existing) == 0 {
		return Decision{LocalID: candidate.LocalID, CreateNew: true, Reason: "no similar entity"}
	}

	ref := candidate.Ref()
	var best *model.Entity
	var bestScore float64
	for _, entity := range existing {
		score, err := r.score(ctx, ref, entity.Ref())
		if err != nil {
			// The oracle is unavailable for this candidate, fall back to the
			// exact alias matching already done above.
			r.logger.Warn("Similarity oracle unavailable, using exact alias matching only",
				slog.String("candidate", candidate.Name),
				slog.String("error", err.Error()))
			return Decision{
				LocalID:   candidate.LocalID,
				CreateNew: true,
				Degraded:  true,
				Reason:    "oracle unavailable, no exact alias match",
			}
		}

		if best == nil || score > bestScore {
			best, bestScore = entity, score
			continue
		}
		if score == bestScore && betterTie(entity, best, candidate.Roles) {
			best = entity
		}
	}

	if best != nil && bestScore > r.threshold {
		return Decision{
			LocalID:   candidate.LocalID,
			MergeInto: best.ID,
			Score:     bestScore,
			Reason:    fmt.Sprintf("similarity %.2f above threshold %.2f", bestScore, r.threshold),
		}
	}

	return Decision{LocalID: candidate.LocalID, CreateNew: true, Score: bestScore, Reason: "no similar entity"}
}

func (r *Resolver) score(ctx context.Context, a model.EntityRef, b model.EntityRef) (float64, error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	score, err := r.oracle.Score(callCtx, a, b)
	if err != nil {
		return 0, errors.Join(ErrOracleUnavailable, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// betterTie reports whether challenger beats current on an equal score:
// more overlapping roles first, then the lower (older) entity id.
func betterTie(challenger *model.Entity, current *model.Entity, roles []string) bool {
	challengerOverlap := challenger.RoleOverlap(roles)
	currentOverlap := current.RoleOverlap(roles)
	if challengerOverlap != currentOverlap {
		return challengerOverlap > currentOverlap
	}
	return challenger.ID < current.ID
}

func candidateAliases(candidate model.CandidateEntity) map[string]struct{} {
	aliases := make(map[string]struct{}, len(candidate.Aliases)+1)
	aliases[model.NormalizeAlias(candidate.Name)] = struct{}{}
	for _, alias := range candidate.Aliases {
		if normalized := model.NormalizeAlias(alias); normalized != "" {
			aliases[normalized] = struct{}{}
		}
	}
	return aliases
}
