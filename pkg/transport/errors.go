package transport

import "errors"

var (
	// ErrInvalidSocket indicates the socket is not opened.
	ErrInvalidSocket = errors.New("invalid socket")
	// ErrNotResolved indicates the peer hardware address is unknown.
	ErrNotResolved = errors.New("peer not resolved")
)
