package generation

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/metrics"
)

const (
	streamResultFinished    = "finished"
	streamResultInterrupted = "interrupted"
	streamResultError       = "error"
	streamResultAbandoned   = "abandoned"
)

type activeStream struct {
	messageID string
	stop      atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func (e *entity) launchStream(addr Address, messageID string, thread []conversation.Message) *activeStream {
	ctx, cancel := context.WithCancel(e.ctx)
	s := &activeStream{
		messageID: messageID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	w := &streamWorker{
		store:   e.runtime.store,
		model:   e.runtime.model,
		owner:   addr.OwnerUserID,
		stream:  s,
		thread:  thread,
		log:     e.log.With().Str("message_id", messageID).Logger(),
		started: time.Now(),
	}
	go func() {
		defer close(s.done)
		defer cancel()
		w.run(ctx)
	}()
	return s
}

type streamWorker struct {
	store   Store
	model   LanguageModel
	owner   string
	stream  *activeStream
	thread  []conversation.Message
	log     zerolog.Logger
	started time.Time

	usage conversation.Usage
}

func (w *streamWorker) run(ctx context.Context) {
	result := w.generate(ctx)
	metrics.RecordStream(result, time.Since(w.started).Seconds(), w.usage.PromptTokens, w.usage.CompletionTokens)
	w.log.Info().Str("result", result).Dur("duration", time.Since(w.started)).Msg("generation stream ended")
}

func (w *streamWorker) generate(ctx context.Context) string {
	messageID := w.stream.messageID

	part, err := w.store.AppendTextPart(ctx, messageID, w.owner)
	if err != nil {
		if ctx.Err() != nil {
			return streamResultAbandoned
		}
		w.log.Error().Err(err).Msg("failed to open text part")
		w.fail(ctx, "")
		return streamResultError
	}

	completion, err := w.model.StreamCompletion(ctx, w.thread)
	if err != nil {
		if ctx.Err() != nil {
			return streamResultAbandoned
		}
		w.log.Error().Err(err).Msg("failed to open completion stream")
		w.fail(ctx, part.ID)
		return streamResultError
	}
	defer completion.Close()

	sequence := 0
	for {
		if w.stream.stop.Load() {
			w.compact(ctx, part.ID)
			return streamResultInterrupted
		}

		fragment, err := completion.Recv()
		if ctx.Err() != nil {
			return streamResultAbandoned
		}
		if w.stream.stop.Load() {
			w.compact(ctx, part.ID)
			return streamResultInterrupted
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.log.Error().Err(err).Int("chunks", sequence).Msg("completion stream failed")
			w.fail(ctx, part.ID)
			return streamResultError
		}
		if fragment == "" {
			continue
		}

		sequence++
		if err := w.store.AppendInflightChunk(ctx, part.ID, sequence, fragment, w.owner); err != nil {
			if ctx.Err() != nil {
				return streamResultAbandoned
			}
			w.log.Error().Err(err).Int("sequence", sequence).Msg("failed to persist chunk")
			w.fail(ctx, part.ID)
			return streamResultError
		}
		metrics.ChunksWrittenTotal.Inc()
	}

	w.usage = completion.Usage()
	if !w.compact(ctx, part.ID) {
		w.fail(ctx, "")
		return streamResultError
	}
	if _, err := w.store.AppendStepCompletionPart(ctx, messageID, w.owner, w.usage); err != nil {
		w.log.Error().Err(err).Msg("failed to record usage")
		w.fail(ctx, "")
		return streamResultError
	}
	if _, err := w.store.TransitionToFinished(ctx, messageID, w.owner); err != nil {
		var transitioned *conversation.MessageAlreadyTransitionedError
		if errors.As(err, &transitioned) {
			w.log.Info().Str("status", string(transitioned.Status)).Msg("message settled before stream finished")
			return streamResultInterrupted
		}
		w.log.Error().Err(err).Msg("failed to finish message")
		return streamResultError
	}
	return streamResultFinished
}

// compact merges the part's chunks into its content and clears them.
func (w *streamWorker) compact(ctx context.Context, partID string) bool {
	if _, err := w.store.Compact(ctx, partID); err != nil {
		w.log.Error().Err(err).Str("part_id", partID).Msg("failed to compact part")
		return false
	}
	if err := w.store.DeleteChunks(ctx, partID); err != nil {
		w.log.Warn().Err(err).Str("part_id", partID).Msg("failed to delete compacted chunks")
	}
	return true
}

// fail keeps whatever output was streamed and moves the message to ERROR.
func (w *streamWorker) fail(ctx context.Context, partID string) {
	if partID != "" {
		w.compact(ctx, partID)
	}
	if _, err := w.store.TransitionToError(ctx, w.stream.messageID, w.owner); err != nil {
		var transitioned *conversation.MessageAlreadyTransitionedError
		if errors.As(err, &transitioned) {
			return
		}
		w.log.Error().Err(err).Msg("failed to mark message as errored")
	}
}
