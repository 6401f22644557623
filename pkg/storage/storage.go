// Package storage wraps the content-addressed store.
package storage

import (
	"context"
	"errors"
)

// Store turns a byte buffer into a content address. Implementations do not
// retry; retry policy, if any, belongs to the caller.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
}

var (
	// ErrUnreachable means the store node could not be reached.
	ErrUnreachable = errors.New("content store unreachable")
	// ErrRejected means the store refused or mishandled the upload.
	ErrRejected = errors.New("content store rejected upload")
	// ErrTimeout means the upload timed out; the bytes may or may not have
	// been pinned.
	ErrTimeout = errors.New("content store timeout")
)
