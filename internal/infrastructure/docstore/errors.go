package docstore

import "errors"

// Sentinel errors for document store operations.
var (
	// ErrNotConnected indicates the client has not been connected.
	ErrNotConnected = errors.New("docstore: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("docstore: connection failed")

	// ErrDisabled indicates the document mirror is disabled in config.
	ErrDisabled = errors.New("docstore: disabled in configuration")
)
