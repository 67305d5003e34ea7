// Package storage archives imported statement files.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("archived file not found")

// FileInfo describes an archived statement.
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	AccountID   uuid.UUID `json:"account_id"`
	ImportJobID uuid.UUID `json:"import_job_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	Path        string    `json:"path"` // relative to the account directory
	CreatedAt   time.Time `json:"created_at"`
}

// Archive keeps a copy of every statement that was committed.
type Archive interface {
	// Store copies r into the archive for the account.
	Store(ctx context.Context, accountID, importJobID uuid.UUID, filename string, r io.Reader) (*FileInfo, error)

	// Open returns the archived bytes.
	Open(ctx context.Context, accountID, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// List returns archived files for an account, oldest first.
	List(ctx context.Context, accountID uuid.UUID) ([]*FileInfo, error)
}
