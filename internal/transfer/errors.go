package transfer

import (
	"errors"

	"PeerShare/internal/content"
)

var (
	// ErrNotFoundLocally is returned when the content hash is absent from the store.
	ErrNotFoundLocally = content.ErrNotFound

	// ErrIO is returned when reading a source or writing a destination fails.
	ErrIO = errors.New("i/o failure")

	// ErrChannelClosed is returned when submitting to a closed service.
	ErrChannelClosed = errors.New("command channel closed")
)
