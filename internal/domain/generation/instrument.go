package generation

import "context"

// Instrumenter wraps command handling, typically with a tracing span.
type Instrumenter interface {
	InstrumentCommand(ctx context.Context, command, conversationID string, fn func(context.Context) error) error
}

type noopInstrumenter struct{}

func (noopInstrumenter) InstrumentCommand(ctx context.Context, _, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}
