package queue

import (
	"errors"

	"filescribe/internal/recognizer"
	"filescribe/internal/services"
)

// ErrNothingProcessing is returned by Cancel when no worker run is active.
var ErrNothingProcessing = errors.New("no job is processing")

func validationError(operation, message string, err error) error {
	return services.Wrap(services.ErrValidation, "queue", operation, message, err)
}

func notFoundError(operation, id string) error {
	return services.Wrap(services.ErrNotFound, "queue", operation, "job "+id, nil)
}

// failureMessage renders a recognizer error as the human message stored on a
// failed job.
func failureMessage(err error) string {
	if err == nil {
		return "transcription failed"
	}
	if errors.Is(err, recognizer.ErrNoActiveEngine) {
		return recognizer.ErrNoActiveEngine.Error()
	}
	return services.Details(err).Message
}
