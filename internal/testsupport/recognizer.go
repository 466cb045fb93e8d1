package testsupport

import (
	"context"
	"errors"
	"sync"

	"filescribe/internal/recognizer"
	"filescribe/internal/transcript"
)

// FakeRecognizer is a scripted recognizer. Results are returned per path;
// unknown paths succeed with a text derived from the file name. When Block is
// set, every call waits until Release or context cancellation.
type FakeRecognizer struct {
	mu       sync.Mutex
	results  map[string]recognizer.Result
	failures map[string]error
	calls    []string
	block    bool
	release  chan struct{}
	started  chan string
}

// NewFakeRecognizer returns a recognizer that completes immediately.
func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{
		results:  make(map[string]recognizer.Result),
		failures: make(map[string]error),
		release:  make(chan struct{}),
		started:  make(chan string, 64),
	}
}

// Blocking makes every Transcribe call wait for Release.
func (f *FakeRecognizer) Blocking() *FakeRecognizer {
	f.mu.Lock()
	f.block = true
	f.mu.Unlock()
	return f
}

// Succeed scripts a successful result for path.
func (f *FakeRecognizer) Succeed(path, text string, segments ...transcript.Segment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[path] = recognizer.Result{Text: text, Segments: segments, DurationMS: transcript.End(segments)}
}

// Fail scripts a failure for path.
func (f *FakeRecognizer) Fail(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = errors.New("recognizer failed")
	}
	f.failures[path] = err
}

// Release unblocks every waiting and future call.
func (f *FakeRecognizer) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.release:
	default:
		close(f.release)
	}
}

// Started delivers the path of each call as it begins.
func (f *FakeRecognizer) Started() <-chan string {
	return f.started
}

// Calls returns the paths transcribed so far in call order.
func (f *FakeRecognizer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Transcribe implements recognizer.Recognizer.
func (f *FakeRecognizer) Transcribe(ctx context.Context, req recognizer.Request, progress recognizer.ProgressFunc) (recognizer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Path)
	block := f.block
	result, scripted := f.results[req.Path]
	failure := f.failures[req.Path]
	f.mu.Unlock()

	select {
	case f.started <- req.Path:
	default:
	}
	if progress != nil {
		progress(0.5)
	}
	if block {
		select {
		case <-ctx.Done():
			return recognizer.Result{}, ctx.Err()
		case <-f.release:
		}
	}
	if err := ctx.Err(); err != nil {
		return recognizer.Result{}, err
	}
	if failure != nil {
		return recognizer.Result{}, failure
	}
	if !scripted {
		result = recognizer.Result{Text: "transcript of " + req.Path}
	}
	return result, nil
}
