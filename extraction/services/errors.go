package services

// services should wrap any error that can come from their process
//    e.i. http errors should be wrapped
//    engine response shape errors need their own kind

import "errors"

var (
	// retrying later could work
	ErrTemporaryNetworkFailure = errors.New("network failure")

	// retrying probably wouldn't work, the service made an assumption
	// about the engine that no longer holds
	ErrIncorrectAssumption = errors.New("unrecoverable failure")

	// ErrExtraction is the kind every adapter failure surfaces as: the
	// image was unreadable or the engine gave nothing usable. The whole
	// extraction pass is never re-run automatically, the user re-uploads.
	ErrExtraction = errors.New("extraction failed")
)
