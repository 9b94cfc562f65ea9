package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/logger"
	"github.com/janhq/jan-chat/internal/infrastructure/metrics"
)

const (
	sweepBatchSize   = 100
	sweepConcurrency = 8
)

type SweepStore interface {
	conversation.SystemStore
	conversation.MaintenanceStore
}

// Sweeper repairs state left behind by streams that died without settling:
// IN_PROGRESS messages nobody is generating move to ERROR, and text parts of
// settled messages that were never compacted are compacted.
type Sweeper struct {
	store      SweepStore
	runtime    *Runtime
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

type SweepReport struct {
	StaleMessages  int
	CompactedParts int
	Failures       int
}

func NewSweeper(store SweepStore, runtime *Runtime, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		store:      store,
		runtime:    runtime,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        logger.Component("generation_sweeper"),
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	cutoff := s.now().Add(-s.staleAfter)
	var stale, compacted, failures atomic.Int64

	messages, err := s.store.FindStaleMessages(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return SweepReport{}, err
	}
	g := new(errgroup.Group)
	g.SetLimit(sweepConcurrency)
	for _, msg := range messages {
		if s.runtime != nil && s.runtime.HasEntity(msg.ConversationID) {
			continue
		}
		g.Go(func() error {
			_, err := s.store.TransitionToError(ctx, msg.ID, msg.OwnerUserID)
			var transitioned *conversation.MessageAlreadyTransitionedError
			if errors.As(err, &transitioned) {
				return nil
			}
			metrics.RecordSweeperRepair("stale_message", err)
			if err != nil {
				failures.Add(1)
				s.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to settle stale message")
				return nil
			}
			stale.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	// Parts of messages settled above are picked up here in the same pass.
	parts, err := s.store.FindOrphanedParts(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return SweepReport{}, err
	}
	g = new(errgroup.Group)
	g.SetLimit(sweepConcurrency)
	for _, part := range parts {
		g.Go(func() error {
			_, err := s.store.Compact(ctx, part.PartID)
			var compactErr *conversation.CompactionDataError
			if err != nil && !errors.As(err, &compactErr) {
				metrics.RecordSweeperRepair("orphaned_part", err)
				failures.Add(1)
				s.log.Error().Err(err).Str("part_id", part.PartID).Msg("failed to compact orphaned part")
				return nil
			}
			if err := s.store.DeleteChunks(ctx, part.PartID); err != nil {
				metrics.RecordSweeperRepair("orphaned_part", err)
				failures.Add(1)
				s.log.Error().Err(err).Str("part_id", part.PartID).Msg("failed to delete orphaned chunks")
				return nil
			}
			metrics.RecordSweeperRepair("orphaned_part", nil)
			compacted.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report := SweepReport{
		StaleMessages:  int(stale.Load()),
		CompactedParts: int(compacted.Load()),
		Failures:       int(failures.Load()),
	}
	if report != (SweepReport{}) {
		s.log.Info().
			Int("stale_messages", report.StaleMessages).
			Int("compacted_parts", report.CompactedParts).
			Int("failures", report.Failures).
			Msg("sweep repaired generation state")
	}
	return report, nil
}
