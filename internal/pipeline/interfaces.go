package pipeline

import (
	"os"
)

// ScratchStorage provides access to the request-scoped scratch files.
// This interface enables mocking and testing of cleanup behaviour.
type ScratchStorage interface {
	// ReadFile returns the full content of a staged upload.
	ReadFile(path string) ([]byte, error)
	// Remove deletes a staged upload.
	Remove(path string) error
}

// LocalScratch is the concrete ScratchStorage backed by the local filesystem.
type LocalScratch struct{}

// NewLocalScratch creates a new instance of LocalScratch.
func NewLocalScratch() *LocalScratch {
	return &LocalScratch{}
}

// ReadFile reads the file at path.
func (LocalScratch) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Remove removes the file at path.
func (LocalScratch) Remove(path string) error {
	return os.Remove(path)
}
