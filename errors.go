// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when the leading bytes match no known container family.
	ErrUnsupportedFormat = errors.New("mediameta: unsupported format")

	// ErrSegmentNotFound is returned by the segment locator when the container holds no
	// metadata segment. Absence is legitimate; Decode maps this to an empty result.
	ErrSegmentNotFound = errors.New("mediameta: metadata segment not found")

	// ErrInvalidHeader is returned when the byte-order mark or magic of a TIFF structure
	// does not match. Fatal for the call.
	ErrInvalidHeader = errors.New("mediameta: invalid TIFF header")

	// ErrCircularIFD is returned when a directory offset is visited twice.
	ErrCircularIFD = errors.New("mediameta: circular IFD chain")

	// ErrSegmentTooLarge is returned on the write path when the encoded metadata blob
	// exceeds the destination's capacity (a single JPEG APP1 segment).
	ErrSegmentTooLarge = errors.New("mediameta: encoded segment exceeds destination capacity")
)

// InvalidFormatError wraps errors caused by malformed or adversarial input,
// as opposed to programming errors or I/O failures.
type InvalidFormatError struct {
	Err error
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("mediameta: invalid format: %v", e.Err)
}

func (e *InvalidFormatError) Is(target error) bool {
	return target == ErrInvalidHeader && errors.Is(e.Err, ErrInvalidHeader)
}

func (e *InvalidFormatError) Unwrap() error {
	return e.Err
}

func newInvalidFormatError(err error) error {
	if err == nil {
		return nil
	}
	var ife *InvalidFormatError
	if errors.As(err, &ife) {
		return err
	}
	return &InvalidFormatError{Err: err}
}

func newInvalidFormatErrorf(format string, args ...any) error {
	return &InvalidFormatError{Err: fmt.Errorf(format, args...)}
}

// Diagnostic records a non-fatal per-tag decode failure. The rest of the
// parse continues; diagnostics accumulate on the ParsedMetadata.
type Diagnostic struct {
	Namespace string
	Tag       string
	Err       error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s/%s: %v", d.Namespace, d.Tag, d.Err)
}
