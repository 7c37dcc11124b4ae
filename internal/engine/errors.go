package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds recorded in RunResult.ErrorKind.
const (
	KindConstruction = "construction"
	KindSignature    = "signature"
	KindEmptyContent = "empty_content"
	KindInvocation   = "invocation"
)

// ConstructionError means a candidate could not be built.
type ConstructionError struct {
	Candidate string
	Err       error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s: %v", e.Candidate, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// SignatureError means a candidate handle has an unsupported shape.
type SignatureError struct {
	Candidate string
	Type      string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("candidate %s has unsupported signature %s (want func(context.Context[, string]) (string|registry.Output, error))", e.Candidate, e.Type)
}

// EmptyContentError means a candidate returned blank content.
type EmptyContentError struct {
	Candidate string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("candidate %s returned empty content", e.Candidate)
}

// InvocationError wraps an error or panic raised by a candidate.
type InvocationError struct {
	Candidate string
	Err       error
	// Stack is set when the candidate panicked.
	Stack string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoke %s: %v", e.Candidate, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// EvaluationError wraps a judge failure. It is logged, never recorded as a failed result.
type EvaluationError struct {
	Candidate string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.Candidate, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Kind classifies a candidate failure.
func Kind(err error) string {
	var (
		ce *ConstructionError
		se *SignatureError
		ee *EmptyContentError
	)
	switch {
	case errors.As(err, &ce):
		return KindConstruction
	case errors.As(err, &se):
		return KindSignature
	case errors.As(err, &ee):
		return KindEmptyContent
	default:
		return KindInvocation
	}
}

// RootCause follows the Unwrap chain to its end. For joined errors the first branch is followed.
func RootCause(err error) error {
	for err != nil {
		var next error
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next = u.Unwrap()
		case interface{ Unwrap() []error }:
			if errs := u.Unwrap(); len(errs) > 0 {
				next = errs[0]
			}
		}
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}

// Details renders the whole error chain, plus the panic stack when there is one.
func Details(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())
	for cur := errors.Unwrap(err); cur != nil; cur = errors.Unwrap(cur) {
		fmt.Fprintf(&b, "\n  caused by: %v", cur)
	}
	var ie *InvocationError
	if errors.As(err, &ie) && ie.Stack != "" {
		b.WriteString("\n\n")
		b.WriteString(ie.Stack)
	}
	return b.String()
}
