package ffprobe

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "AUDIO"},
		},
		Format: Format{Duration: "123.4567"},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationMillis() != 123457 {
		t.Fatalf("unexpected duration: %v", result.DurationMillis())
	}
}

func TestDurationMillisHandlesInvalidNumbers(t *testing.T) {
	for _, value := range []string{"bad", "-1", "", "0"} {
		result := Result{Format: Format{Duration: value}}
		if got := result.DurationMillis(); got != 0 {
			t.Fatalf("duration %q: expected 0, got %d", value, got)
		}
	}
}

func TestInspectUsesRunner(t *testing.T) {
	var gotName string
	var gotArgs []string
	prober := NewProber("").WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte(`{"streams":[{"index":0,"codec_type":"audio","codec_name":"pcm_s16le"}],"format":{"duration":"1.500"}}`), nil
	})

	result, err := prober.Inspect(context.Background(), "/in/a.wav")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if gotName != DefaultBinary {
		t.Fatalf("unexpected binary %q", gotName)
	}
	if gotArgs[len(gotArgs)-1] != "/in/a.wav" || !slices.Contains(gotArgs, "--") {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if result.DurationMillis() != 1500 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestInspectPropagatesFailures(t *testing.T) {
	prober := NewProber("probe").WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	if _, err := prober.Inspect(context.Background(), "/in/a.wav"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := prober.Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
