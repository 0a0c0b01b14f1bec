// Package processor maps the host's version-skewed replica structures into
// the canonical wire records of pkg/proto/v1.
//
// Every builder is a pure function of its input. Records borrow byte slices
// from the host structure and must be encoded before the callback returns.
package processor

import (
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is matched by every *UnsupportedVersionError. The
// host and plugin disagree on the replica layout and no record can be built.
var ErrUnsupportedVersion = errors.New("unsupported replica version")

// UnsupportedVersionError names the replica kind and the variant the host
// handed over.
type UnsupportedVersionError struct {
	Kind    string
	Variant string
}

func unsupported(kind string, v any) *UnsupportedVersionError {
	return &UnsupportedVersionError{Kind: kind, Variant: fmt.Sprintf("%T", v)}
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported %s replica version: %s", e.Kind, e.Variant)
}

func (e *UnsupportedVersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}
