package core

import (
	"errors"
	"fmt"
)

var (
	ErrInputLoad                = errors.New("input load error")
	ErrTemplateNotFound         = errors.New("template not found")
	ErrEncodingCapacityExceeded = errors.New("encoding capacity exceeded")
	ErrCodeSpaceExhausted       = errors.New("code space exhausted")
	ErrRowProcessing            = errors.New("row processing error")
)

// ErrorKind is the stable name of an error class as it appears in logs and
// failure reports. Do not rename.
type ErrorKind string

const (
	KindInputLoad                ErrorKind = "InputLoadError"
	KindTemplateNotFound         ErrorKind = "TemplateNotFound"
	KindEncodingCapacityExceeded ErrorKind = "EncodingCapacityExceeded"
	KindCodeSpaceExhausted       ErrorKind = "CodeSpaceExhausted"
	KindRowProcessing            ErrorKind = "RowProcessingError"
)

// Error wraps a pipeline failure with its class.
//
// Kind is one of the Err* sentinels; Err is the underlying cause, if any.
// errors.Is matches both.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	s := e.Kind.Error()
	if e.Msg != "" {
		s = fmt.Sprintf("%s: %s", s, e.Msg)
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s: %v", s, e.Err)
	}
	return s
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func InputLoadError(path string, err error) error {
	return &Error{Kind: ErrInputLoad, Msg: fmt.Sprintf("reading %s", path), Err: err}
}

func TemplateNotFoundError(path string, err error) error {
	return &Error{Kind: ErrTemplateNotFound, Msg: path, Err: err}
}

func CapacityError(msg string, err error) error {
	return &Error{Kind: ErrEncodingCapacityExceeded, Msg: msg, Err: err}
}

func RowError(msg string, err error) error {
	return &Error{Kind: ErrRowProcessing, Msg: msg, Err: err}
}

// KindOf classifies err. Anything unrecognized is a row processing error, since
// that is the catch-all class for per-row failures.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInputLoad):
		return KindInputLoad
	case errors.Is(err, ErrTemplateNotFound):
		return KindTemplateNotFound
	case errors.Is(err, ErrEncodingCapacityExceeded):
		return KindEncodingCapacityExceeded
	case errors.Is(err, ErrCodeSpaceExhausted):
		return KindCodeSpaceExhausted
	default:
		return KindRowProcessing
	}
}
