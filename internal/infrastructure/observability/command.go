package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/janhq/jan-chat/internal/config"
)

// CommandInstrumenter traces and measures generation commands.
type CommandInstrumenter struct {
	tracer          trace.Tracer
	commandsRunning metric.Int64UpDownCounter
	commandDuration metric.Float64Histogram
	commandsTotal   metric.Int64Counter
}

func NewCommandInstrumenter(tracer trace.Tracer, meter metric.Meter, serviceName string) (*CommandInstrumenter, error) {
	commandsRunning, err := meter.Int64UpDownCounter(
		fmt.Sprintf("jan_%s_generation_commands_running", serviceName),
		metric.WithDescription("Generation commands currently being handled"),
	)
	if err != nil {
		return nil, err
	}

	commandDuration, err := meter.Float64Histogram(
		fmt.Sprintf("jan_%s_generation_command_duration_seconds", serviceName),
		metric.WithDescription("Generation command handling duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	commandsTotal, err := meter.Int64Counter(
		fmt.Sprintf("jan_%s_generation_commands_handled_total", serviceName),
		metric.WithDescription("Generation commands handled"),
	)
	if err != nil {
		return nil, err
	}

	return &CommandInstrumenter{
		tracer:          tracer,
		commandsRunning: commandsRunning,
		commandDuration: commandDuration,
		commandsTotal:   commandsTotal,
	}, nil
}

// ProvideCommandInstrumenter uses the global providers installed by Setup.
func ProvideCommandInstrumenter(cfg *config.Config) (*CommandInstrumenter, error) {
	return NewCommandInstrumenter(otel.Tracer(cfg.ServiceName), otel.Meter(cfg.ServiceName), sanitizeName(cfg.ServiceName))
}

// InstrumentCommand wraps one command execution in a span and records its outcome.
func (c *CommandInstrumenter) InstrumentCommand(ctx context.Context, command, conversationID string, fn func(context.Context) error) error {
	c.commandsRunning.Add(ctx, 1)
	defer c.commandsRunning.Add(ctx, -1)

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("generation.%s", command),
		trace.WithAttributes(
			attribute.String("generation.command", command),
			attribute.String("conversation.id", conversationID),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("generation.command", command),
		attribute.String("status", status),
	)
	c.commandDuration.Record(ctx, duration, attrs)
	c.commandsTotal.Add(ctx, 1, attrs)

	return err
}

func sanitizeName(name string) string {
	out := []rune(name)
	for i, r := range out {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			out[i] = '_'
		}
	}
	return string(out)
}
