// Package errdefs defines the error kinds surfaced by the rendering pipeline.
//
// Every component wraps its failures in one of the kinds below so callers can
// branch on errors.Is without caring which layer produced the error.
package errdefs

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Match with errors.Is.
var (
	// ErrConfig marks an invalid layout or dimension: a template authoring bug.
	ErrConfig = errors.New("config error")
	// ErrAsset marks a missing or undecodable background or photo.
	ErrAsset = errors.New("asset error")
	// ErrNotFound marks an unknown template id.
	ErrNotFound = errors.New("not found")
	// ErrState marks encoder misuse.
	ErrState = errors.New("state error")
	// ErrEncoding marks an internal encoder failure.
	ErrEncoding = errors.New("encoding error")
)

// kindError carries a kind plus the underlying cause.
type kindError struct {
	kind error
	msg  string
	err  error
}

func (e *kindError) Error() string {
	switch {
	case e.msg != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.kind, e.err)
	}
	return e.kind.Error()
}

// Is reports the kind so errors.Is(err, ErrConfig) works through wrapping.
func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.err
}

func newf(kind error, cause error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}

// Configf returns a ConfigError with a formatted message.
func Configf(format string, args ...any) error {
	return newf(ErrConfig, nil, format, args...)
}

// Assetf returns an AssetError with a formatted message.
func Assetf(format string, args ...any) error {
	return newf(ErrAsset, nil, format, args...)
}

// NotFoundf returns a NotFoundError with a formatted message.
func NotFoundf(format string, args ...any) error {
	return newf(ErrNotFound, nil, format, args...)
}

// Statef returns a StateError with a formatted message.
func Statef(format string, args ...any) error {
	return newf(ErrState, nil, format, args...)
}

// Asset wraps cause as an AssetError.
func Asset(cause error, format string, args ...any) error {
	return newf(ErrAsset, cause, format, args...)
}

// Config wraps cause as a ConfigError.
func Config(cause error, format string, args ...any) error {
	return newf(ErrConfig, cause, format, args...)
}

// Encoding wraps cause as an EncodingError.
func Encoding(cause error, format string, args ...any) error {
	return newf(ErrEncoding, cause, format, args...)
}

func IsConfig(err error) bool   { return errors.Is(err, ErrConfig) }
func IsAsset(err error) bool    { return errors.Is(err, ErrAsset) }
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsState(err error) bool    { return errors.Is(err, ErrState) }
func IsEncoding(err error) bool { return errors.Is(err, ErrEncoding) }
