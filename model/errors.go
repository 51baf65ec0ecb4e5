package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an instruction failed.
type ErrorKind string

const (
	SnippetNotFound  ErrorKind = "SnippetNotFound"
	AmbiguousSnippet ErrorKind = "AmbiguousSnippet"
	EmptySnippet     ErrorKind = "EmptySnippet"
	FileNotFound     ErrorKind = "FileNotFound"
	StaleSpan        ErrorKind = "StaleSpan"
	PathEscapesRoot  ErrorKind = "PathEscapesRoot"
	PermissionDenied ErrorKind = "PermissionDenied"
	IoError          ErrorKind = "IoError"
	EncodingError    ErrorKind = "EncodingError"
	Cancelled        ErrorKind = "Cancelled"
)

// Error is a classified failure on a single path.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

// NewError builds an *Error. err may be nil.
func NewError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the ErrorKind carried by err, or IoError when err is not
// classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return IoError
}

// Describe returns a short human-readable reason for a failure kind.
func (k ErrorKind) Describe() string {
	switch k {
	case SnippetNotFound:
		return "original snippet not found in file"
	case AmbiguousSnippet:
		return "original snippet matches more than once"
	case EmptySnippet:
		return "original snippet is empty"
	case FileNotFound:
		return "file does not exist"
	case StaleSpan:
		return "file changed before the edit could be written"
	case PathEscapesRoot:
		return "path resolves outside the working directory"
	case PermissionDenied:
		return "permission denied"
	case EncodingError:
		return "file is not valid UTF-8"
	case Cancelled:
		return "cancelled before this item was processed"
	default:
		return "i/o error"
	}
}
