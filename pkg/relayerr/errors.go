// Package relayerr holds the error kinds shared between the upload,
// ingestion and streaming paths.
package relayerr

import (
	"errors"

	"github.com/tauraamui/xerror"
)

const (
	KindValidation = xerror.Kind("validation")
	KindDecode     = xerror.Kind("decode")
	KindProcessing = xerror.Kind("processing")
	KindConfig     = xerror.Kind("config")
)

var (
	ErrValidation = xerror.NewWithKind(KindValidation, "invalid upload")
	ErrDecode     = xerror.NewWithKind(KindDecode, "unable to decode video")
	ErrProcessing = xerror.NewWithKind(KindProcessing, "frame extraction aborted")
	ErrConfig     = xerror.NewWithKind(KindConfig, "invalid configuration")
)

// Validation is returned for requests which are rejected before any
// work is dispatched for them.
func Validation(msg string) error {
	return xerror.Errorf("%w: %s", ErrValidation, msg)
}

// Decode wraps a failure to open or parse an uploaded video container.
func Decode(cause error) error {
	return xerror.Errorf("%w: %w", ErrDecode, cause)
}

// Processing wraps a failure which happened part way through extracting
// frames from an already opened container.
func Processing(cause error) error {
	return xerror.Errorf("%w: %w", ErrProcessing, cause)
}

// Config wraps a configuration load or validation failure.
func Config(cause error) error {
	return xerror.Errorf("%w: %w", ErrConfig, cause)
}

// KindOf reports which of the known kinds err belongs to, or xerror.NA.
func KindOf(err error) xerror.Kind {
	switch {
	case err == nil:
		return xerror.NA
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	case errors.Is(err, ErrConfig):
		return KindConfig
	}
	return xerror.NA
}
