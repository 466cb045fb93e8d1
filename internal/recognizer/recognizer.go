package recognizer

import (
	"context"
	"errors"

	"filescribe/internal/transcript"
)

// ProgressFunc receives fractional progress in [0,1].
type ProgressFunc func(progress float64)

// Request describes a file to transcribe.
type Request struct {
	JobID string
	Path  string
}

// Result is the output of a successful transcription.
type Result struct {
	Text       string
	Segments   []transcript.Segment
	DurationMS int64
}

// Recognizer converts speech in a media file to text. Implementations must
// abort promptly once ctx is cancelled and return ctx.Err (or an error
// wrapping it) so callers can tell cancellation from failure.
type Recognizer interface {
	Transcribe(ctx context.Context, req Request, progress ProgressFunc) (Result, error)
}

// ErrNoActiveEngine reports that no recognizer is currently selected.
var ErrNoActiveEngine = errors.New("no active transcription engine")

// EngineProvider yields the currently active recognizer. Engine selection and
// model lifecycle belong to the provider's owner.
type EngineProvider interface {
	ActiveEngine(ctx context.Context) (Recognizer, error)
}

// Static is an EngineProvider that always returns the same recognizer.
type Static struct {
	Recognizer Recognizer
}

// ActiveEngine implements EngineProvider.
func (s Static) ActiveEngine(context.Context) (Recognizer, error) {
	if s.Recognizer == nil {
		return nil, ErrNoActiveEngine
	}
	return s.Recognizer, nil
}

// Func adapts a function to the Recognizer interface.
type Func func(ctx context.Context, req Request, progress ProgressFunc) (Result, error)

// Transcribe implements Recognizer.
func (f Func) Transcribe(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	return f(ctx, req, progress)
}
