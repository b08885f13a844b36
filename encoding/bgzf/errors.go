// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import "github.com/grailbio/base/errors"

// Package-level error sentinels for every error code this package can
// report. Callers can match a returned error against one of these with
// errors.Is (the standard library's, not grailbio/base/errors': wrapped
// errors returned from this package always chain back to one of these
// via fmt.Errorf's %w), or inspect its Kind by extracting the
// *errors.Error with the standard library's errors.As.
var (
	// ErrMalformedHeader indicates the block's magic bytes or BC
	// subfield identifiers did not match.
	ErrMalformedHeader = errors.E(errors.Invalid, "bgzf: malformed block header")

	// ErrInsufficientBytes indicates the raw stream ended mid-header
	// or mid-block.
	ErrInsufficientBytes = errors.E(errors.Invalid, "bgzf: truncated block")

	// ErrBlockSizeMismatch indicates inflate produced a size different
	// from the block's declared inflated size.
	ErrBlockSizeMismatch = errors.E(errors.Integrity, "bgzf: inflated size does not match declared size")

	// ErrCRCMismatch indicates the CRC-32 of the inflated bytes did
	// not match the block's declared CRC.
	ErrCRCMismatch = errors.E(errors.Integrity, "bgzf: CRC-32 mismatch")

	// ErrZlibInitialization indicates the underlying deflate/inflate
	// codec failed to initialize.
	ErrZlibInitialization = errors.E(errors.Unavailable, "bgzf: deflate/inflate initialization failed")

	// ErrZlib indicates the underlying deflate/inflate codec failed.
	ErrZlib = errors.E(errors.Unavailable, "bgzf: deflate/inflate failed")

	// ErrBatchTooLarge indicates a caller passed more than
	// BlockBatchSize descriptors to a batch call.
	ErrBatchTooLarge = errors.E(errors.Precondition, "bgzf: batch exceeds BlockBatchSize")

	// ErrBatchShapeMismatch indicates a batch call's destination count
	// did not match its source count.
	ErrBatchShapeMismatch = errors.E(errors.Precondition, "bgzf: destination count does not match source count")
)
