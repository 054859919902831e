package chain

import "errors"

var (
	// ErrInconsistentTransitionQCs is returned when a QC and next-epoch QC do not certify the same leaf.
	ErrInconsistentTransitionQCs = errors.New("transition QCs do not certify the same leaf")
	// ErrMalformedPayload is returned when encoded transactions cannot be decoded.
	ErrMalformedPayload = errors.New("malformed block payload")
)

// ErrUpgradeCertificateMismatch is returned when a leaf drops or replaces its parent's pending upgrade certificate.
var ErrUpgradeCertificateMismatch = errors.New("leaf upgrade certificate is inconsistent with its parent")
