package domain

import "errors"

// Request-shape and processing errors shared across packages.
var (
	ErrNoFiles            = errors.New("no files uploaded")
	ErrTooManyFiles       = errors.New("too many files")
	ErrFileTooLarge       = errors.New("file exceeds maximum size")
	ErrInvalidOptions     = errors.New("invalid upload options")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrEmptyDocument      = errors.New("document contains no data")
	ErrEmptyModelResponse = errors.New("empty response from model")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidSessionID   = errors.New("invalid session id")
)
