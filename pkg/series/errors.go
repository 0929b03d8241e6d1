package series

import (
	"errors"
	"fmt"
)

// Kind classifies why a series could not be turned into a volume.
// Every failure returned by Load carries exactly one Kind.
type Kind int

const (
	// KindNoFiles means the location held no slice files
	KindNoFiles Kind = iota + 1

	// KindUnsupportedFormat means the slices decoded but do not form one
	// consistent volume (mismatched geometry, bit depth, ordering or spacing)
	KindUnsupportedFormat

	// KindNative means the decoder failed on a file, or a slice's pixel
	// payload did not match its declared dimensions
	KindNative

	// KindUnavailable means no working decoder is installed for this process
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNoFiles:
		return "no files"
	case KindUnsupportedFormat:
		return "unsupported format"
	case KindNative:
		return "native"
	case KindUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error surfaced by a failed Load
type Error struct {
	Kind Kind

	// Op names the pipeline stage that failed (decode, validate, order, ...)
	Op string

	// Msg is an optional human-readable diagnostic
	Msg string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNoFiles)
// works regardless of stage or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is
var (
	ErrNoFiles           = &Error{Kind: KindNoFiles}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrNative            = &Error{Kind: KindNative}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
)

// ErrNotSlice is returned by a Decoder for files that are not slice
// files at all. Such files are skipped rather than failing the series.
var ErrNotSlice = errors.New("not a slice file")

// Classify returns the Kind of err. Errors that were never classified by
// the pipeline are reported as KindNative.
func Classify(err error) Kind {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNative
}

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
		Err:  err,
	}
}

func unsupported(op, format string, args ...any) *Error {
	return newError(KindUnsupportedFormat, op, nil, format, args...)
}

// classify wraps err as kind unless it already carries a classification
func classify(kind Kind, op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
