package deployer

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoIdentity is returned when the target chain client has no account to sign with.
	ErrNoIdentity = errors.New("no account connected")
	// ErrUnknownNetwork is returned when no client is configured for the target chain.
	ErrUnknownNetwork = errors.New("unknown target network")
	// ErrSessionUsed is returned when a session is run a second time.
	ErrSessionUsed = errors.New("session already started")
	// ErrAbandoned is returned when the caller cancelled after a transaction was sent.
	ErrAbandoned = errors.New("deployment abandoned, outcome unknown")
)

// InvalidTransitionError is returned when a session is asked to make a transition its lifecycle
// does not allow.
type InvalidTransitionError struct {
	From, To State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", e.From, e.To)
}

// SubmissionError wraps any failure to get a deployment transaction accepted, such as a
// rejected signature or a provider error. The underlying message is kept verbatim.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "transaction submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NoContractAddressError is returned when a deployment transaction was mined without creating a
// contract, typically because the constructor reverted.
type NoContractAddressError struct {
	TxHash       common.Hash
	BlockNumber  uint64
	Status       uint64
	RevertReason string
}

func (e *NoContractAddressError) Error() string {
	msg := fmt.Sprintf("deployment failed: no contract address returned (tx %s, block %d, status %d)",
		e.TxHash.Hex(), e.BlockNumber, e.Status)
	if e.RevertReason != "" {
		msg += ": " + e.RevertReason
	}

	return msg
}

// VerificationError wraps a failed source verification. It never fails a session.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return "source verification failed: " + e.Err.Error()
}

func (e *VerificationError) Unwrap() error { return e.Err }

// StageError is the terminal error of a session, recording the state the session was in when
// it stopped.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
