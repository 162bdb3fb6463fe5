package analyzer

import (
	"errors"
	"fmt"
)

// ErrNoClient is returned by Predict when the analyzer has no backend.
var ErrNoClient = errors.New("no prediction backend configured")

// PredictionError reports a failed or unprocessable backend call.
type PredictionError struct {
	Key string // cache key of the variant
	Err error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predict variant %s: %v", e.Key, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// CacheIOError reports a failed cache export or import. After a failed
// import the cache must be treated as needing a rebuild.
type CacheIOError struct {
	Op   string // "export" or "import"
	Path string
	Err  error
}

func (e *CacheIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CacheIOError) Unwrap() error {
	return e.Err
}
