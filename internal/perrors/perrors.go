// Package perrors classifies the error taxonomy the pipeline acts on: a
// worker needs to know whether to retry, drop-and-warn, or drop-and-error,
// and nothing upstream of the worker should have to re-derive that from a
// bare error string.
package perrors

import (
	"github.com/pkg/errors"
)

// Class is the action a caller should take for an error.
type Class int

const (
	// ClassProtocol covers bad prefix, bad arity, bad enum, unknown action.
	// Drop + warn. Never retried.
	ClassProtocol Class = iota
	// ClassCryptographic covers bad hex, wrong length, invalid signature.
	// Drop + error. Never retried.
	ClassCryptographic
	// ClassData covers hex-decode or base64 failures scoped to one action.
	// Drop + warn for the single action.
	ClassData
	// ClassTransient covers store connection/query failures. Retried by the
	// worker up to its configured attempt budget.
	ClassTransient
	// ClassFatal covers supervisor-level failures that should terminate the
	// process.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassProtocol:
		return "protocol"
	case ClassCryptographic:
		return "cryptographic"
	case ClassData:
		return "data"
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// classified is an error annotated with a Class.
type classified struct {
	class Class
	err   error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Wrap annotates err with a class and a message, in the style of
// errors.Wrap adding context at a layer boundary.
func Wrap(class Class, err error, message string) error {
	if err == nil {
		return nil
	}
	return &classified{class: class, err: errors.Wrap(err, message)}
}

// New creates a new classified error from a message.
func New(class Class, message string) error {
	return &classified{class: class, err: errors.New(message)}
}

// ClassOf returns the Class attached to err, or ClassTransient as the safe
// default when the error was not produced by this package (an unclassified
// error from a store driver is treated as transient so it gets retried
// rather than silently dropped).
func ClassOf(err error) Class {
	var c *classified
	if errors.As(err, &c) {
		return c.class
	}
	return ClassTransient
}

// IsRetryable reports whether a worker should retry after this error.
func IsRetryable(err error) bool {
	return ClassOf(err) == ClassTransient
}
