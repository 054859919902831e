package model

import (
	"errors"
	"fmt"

	"github.com/hotshot-go/hotshot/model/chain"
)

var (
	// ErrStaleView is returned for inputs at or below the current view. Stale inputs are discarded silently.
	ErrStaleView = errors.New("input is for a stale view")
	// ErrWrongLeader is returned when a proposal does not originate from the view's leader.
	ErrWrongLeader = errors.New("sender is not the leader of the view")
	// ErrNotLeader is returned when the local node is asked to act as a leader it is not.
	ErrNotLeader = errors.New("this node is not the leader of the view")
)

// NoVoteError contains the reason why the node did not vote for a proposal.
type NoVoteError struct {
	Msg string
}

func (e NoVoteError) Error() string { return e.Msg }

// NewNoVoteErrorf creates a NoVoteError.
func NewNoVoteErrorf(msg string, args ...interface{}) error {
	return NoVoteError{Msg: fmt.Sprintf(msg, args...)}
}

// IsNoVoteError returns whether an error is NoVoteError
func IsNoVoteError(err error) bool {
	var e NoVoteError
	return errors.As(err, &e)
}

// ConfigurationError indicates that a constructor or component was initialized with
// invalid or inconsistent parameters.
type ConfigurationError struct {
	err error
}

func NewConfigurationErrorf(msg string, args ...interface{}) error {
	return ConfigurationError{fmt.Errorf(msg, args...)}
}

func (e ConfigurationError) Error() string { return e.err.Error() }
func (e ConfigurationError) Unwrap() error { return e.err }

// IsConfigurationError returns whether err is a ConfigurationError
func IsConfigurationError(err error) bool {
	var e ConfigurationError
	return errors.As(err, &e)
}

// MissingLeafError indicates that no leaf with the given commitment is known locally or over the network.
type MissingLeafError struct {
	View       uint64
	Commitment chain.Commitment
}

func (e MissingLeafError) Error() string {
	return fmt.Sprintf("missing leaf at view %d with commitment %v", e.View, e.Commitment)
}

// IsMissingLeafError returns whether an error is MissingLeafError
func IsMissingLeafError(err error) bool {
	var e MissingLeafError
	return errors.As(err, &e)
}

// InvalidProposalError indicates that a proposal failed validation.
type InvalidProposalError struct {
	View uint64
	Err  error
}

func NewInvalidProposalErrorf(view uint64, msg string, args ...interface{}) error {
	return InvalidProposalError{View: view, Err: fmt.Errorf(msg, args...)}
}

func (e InvalidProposalError) Error() string {
	return fmt.Sprintf("invalid proposal at view %d: %s", e.View, e.Err.Error())
}

// IsInvalidProposalError returns whether an error is InvalidProposalError
func IsInvalidProposalError(err error) bool {
	var e InvalidProposalError
	return errors.As(err, &e)
}

func (e InvalidProposalError) Unwrap() error {
	return e.Err
}

// InvalidCertificateError indicates that a certificate failed verification.
type InvalidCertificateError struct {
	View uint64
	Err  error
}

func NewInvalidCertificateErrorf(view uint64, msg string, args ...interface{}) error {
	return InvalidCertificateError{View: view, Err: fmt.Errorf(msg, args...)}
}

func (e InvalidCertificateError) Error() string {
	return fmt.Sprintf("invalid certificate for view %d: %s", e.View, e.Err.Error())
}

// IsInvalidCertificateError returns whether an error is InvalidCertificateError
func IsInvalidCertificateError(err error) bool {
	var e InvalidCertificateError
	return errors.As(err, &e)
}

func (e InvalidCertificateError) Unwrap() error {
	return e.Err
}

// InvalidVoteError indicates that a vote failed validation.
type InvalidVoteError struct {
	View   uint64
	Signer chain.NodeID
	Err    error
}

func NewInvalidVoteErrorf(view uint64, signer chain.NodeID, msg string, args ...interface{}) error {
	return InvalidVoteError{
		View:   view,
		Signer: signer,
		Err:    fmt.Errorf(msg, args...),
	}
}

func (e InvalidVoteError) Error() string {
	return fmt.Sprintf("invalid vote from %v for view %d: %s", e.Signer, e.View, e.Err.Error())
}

// IsInvalidVoteError returns whether an error is InvalidVoteError
func IsInvalidVoteError(err error) bool {
	var e InvalidVoteError
	return errors.As(err, &e)
}

func (e InvalidVoteError) Unwrap() error {
	return e.Err
}

// SkipError indicates that a task deliberately did not act on an event: the input was
// stale, this node has no role in it, or a dependency is not available yet. Skips are
// expected during normal operation and are retried by later events.
type SkipError struct {
	Err error
}

func NewSkipErrorf(msg string, args ...interface{}) error {
	return SkipError{Err: fmt.Errorf(msg, args...)}
}

func (e SkipError) Error() string { return "skipped: " + e.Err.Error() }
func (e SkipError) Unwrap() error { return e.Err }

// IsSkipError returns whether an error is SkipError
func IsSkipError(err error) bool {
	var e SkipError
	return errors.As(err, &e)
}

// IsRejection returns whether the error reports invalid input from another node.
func IsRejection(err error) bool {
	return IsNoVoteError(err) ||
		IsInvalidProposalError(err) ||
		IsInvalidCertificateError(err) ||
		IsInvalidVoteError(err) ||
		errors.Is(err, ErrWrongLeader)
}
