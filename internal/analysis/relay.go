package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"finanzas/internal/llm"
	"finanzas/internal/sse"
)

// relay states. The relay starts streaming and ends in exactly one of the two
// terminal states.
type state int

const (
	stateStreaming state = iota
	stateCompleted
	stateFailed
)

// Emitter sends one downstream event per call. *sse.Writer satisfies it.
type Emitter interface {
	Send(v any) error
}

// Relay consumes the upstream chat-completion stream, reassembles the JSON
// document from its content deltas and emits progress/terminal events
// downstream. One relay serves one request; it is not reusable.
type Relay struct {
	emitter Emitter
	state   state

	buffer   strings.Builder
	deltas   int
	progress int
	// Malformed data lines are expected upstream chunking artifacts. They are
	// skipped, but counted so the behavior stays observable.
	skipped int
}

func NewRelay(emitter Emitter) *Relay {
	return &Relay{
		emitter:  emitter,
		progress: 10,
	}
}

// Progress cadence: one processing event every 10th extracted delta, capped
// below 100. 100 is reserved for the terminal event.
const (
	progressEvery = 10
	progressStep  = 5
	progressCap   = 95
)

// Run drives the relay until a terminal event has been emitted. It always
// emits exactly one terminal event, whatever happens to the upstream stream,
// and returns the error that caused a failed terminal for logging.
func (r *Relay) Run(ctx context.Context, upstream io.Reader) error {
	scanner := sse.NewScanner(upstream)

	for r.state == stateStreaming {
		payload, err := scanner.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.finishAtEOF(ctx)
				return nil
			}
			// Transport failure mid-stream: one terminal error, never more.
			slog.ErrorContext(ctx, "Upstream stream read failed", "error", err, "buffered_bytes", r.buffer.Len())
			r.fail("Error leyendo la respuesta del análisis")
			return err
		}

		if payload == sse.Done {
			r.finalize(ctx)
			return nil
		}

		var chunk llm.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			r.skipped++
			slog.DebugContext(ctx, "Skipping malformed upstream chunk", "skipped_total", r.skipped)
			continue
		}

		delta := chunk.Delta()
		if delta == "" {
			continue
		}
		r.buffer.WriteString(delta)
		r.deltas++

		if r.deltas%progressEvery == 0 {
			if r.progress+progressStep <= progressCap {
				r.progress += progressStep
			}
			_ = r.emitter.Send(Event{Status: "processing", Progress: r.progress})
		}
	}

	return nil
}

// finishAtEOF handles an upstream that closed without sending the [DONE]
// sentinel. A non-empty buffer still gets the normal finalize path; an empty
// buffer is reported explicitly rather than closing the stream silently.
func (r *Relay) finishAtEOF(ctx context.Context) {
	if r.buffer.Len() == 0 {
		slog.WarnContext(ctx, "Upstream stream closed with empty buffer", "skipped_lines", r.skipped)
		r.fail("El análisis no devolvió ningún contenido")
		return
	}
	slog.InfoContext(ctx, "Upstream stream closed without done sentinel, finalizing buffer", "buffered_bytes", r.buffer.Len())
	r.finalize(ctx)
}

// finalize parses the accumulated buffer and emits the terminal event.
func (r *Relay) finalize(ctx context.Context) {
	buffered := r.buffer.String()
	result, err := ParseResult(buffered)
	if err != nil {
		// Keep the raw buffer in the logs for debugging, not in the message
		// shown to the user.
		slog.ErrorContext(ctx, "Accumulated analysis buffer failed to parse",
			"error", err,
			"buffered_bytes", len(buffered),
			"buffer", buffered)
		r.fail("El análisis devolvió una respuesta no válida")
		return
	}

	r.state = stateCompleted
	_ = r.emitter.Send(Event{Status: "completed", Progress: 100, Result: result})
	slog.InfoContext(ctx, "Analysis completed",
		"insights", len(result.Insights),
		"recommendations", len(result.Recommendations),
		"deltas", r.deltas,
		"skipped_lines", r.skipped)
}

func (r *Relay) fail(message string) {
	r.state = stateFailed
	_ = r.emitter.Send(Event{Status: "error", Message: message})
}

// Fail emits a terminal error event from outside the read loop, for failures
// that happen before any upstream bytes arrive (for example a non-2xx
// upstream response). It is a no-op once a terminal event has been sent.
func (r *Relay) Fail(message string) {
	if r.state != stateStreaming {
		return
	}
	r.fail(message)
}
