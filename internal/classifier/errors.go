package classifier

import "fmt"

// ErrorKind says which stage of classification failed.
type ErrorKind string

const (
	// KindTransport covers network failures, timeouts and cancellation.
	KindTransport ErrorKind = "transport"

	// KindStatus means the API returned a non-success status.
	KindStatus ErrorKind = "status"

	// KindMalformed means the model's content was not {"intent": string, "risk": bool}.
	KindMalformed ErrorKind = "malformed"
)

// ClassificationError is returned by Classify for every provider or parse
// failure. Input validation uses ErrEmptyMessage instead.
type ClassificationError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ClassificationError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("classification failed (%s %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("classification failed (%s): %v", e.Kind, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }
