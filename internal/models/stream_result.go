package models

// StreamResult holds either a value or an error from a streaming operation.
// A non-nil Err ends the stream; the channel is closed right after it.
type StreamResult[T any] struct {
	Value T
	Err   error
}
