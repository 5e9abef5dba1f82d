package engines

import (
	"errors"
	"fmt"
)

// RemoteServiceError marks a failure reported by, or on the way to, the
// remote completion service. These are the only errors worth retrying.
type RemoteServiceError struct {
	StatusCode int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote service error (status %d): %s", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote service error: %s", e.Err)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

func IsRemoteServiceError(err error) bool {
	var remoteErr *RemoteServiceError
	return errors.As(err, &remoteErr)
}
