package pipeline

import "errors"

var (
	// ErrAlreadyResolved is terminal: the report has been cleaned up before.
	ErrAlreadyResolved = errors.New("report has already been resolved")

	ErrReportNotFound    = errors.New("report not found")
	ErrRewardTransfer    = errors.New("reward transfer failed")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
)
