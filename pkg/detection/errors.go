package detection

import "errors"

var (
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	ErrInvalidResponse      = errors.New("invalid response from inference service")
	ErrEmptyFrame           = errors.New("empty frame")
	ErrDetectorClosed       = errors.New("detector closed")
)
