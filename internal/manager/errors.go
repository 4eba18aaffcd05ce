package manager

import (
	"fmt"

	"golang.org/x/xerrors"
)

// errorCode distinguishes submission errors a caller can match on, the way
// the teacher's pkg/commands/errors.go does for ComplexError.
type errorCode int

const (
	// DuplicateOperation is spec.md's DUPLICATE_OPERATION: an active
	// Process already exists for the submitted operation_id (invariant O1).
	DuplicateOperation errorCode = iota
)

// SubmissionError carries a matchable code alongside its message, adapted
// from the teacher's ComplexError (pkg/commands/errors.go).
type SubmissionError struct {
	Code    errorCode
	Message string
	frame   xerrors.Frame
}

func (e SubmissionError) FormatError(p xerrors.Printer) error {
	p.Printf("%s", e.Message)
	e.frame.Format(p)
	return nil
}

func (e SubmissionError) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

func (e SubmissionError) Error() string {
	return fmt.Sprint(e)
}

// IsDuplicateOperation reports whether err is a SubmissionError carrying
// the DuplicateOperation code.
func IsDuplicateOperation(err error) bool {
	var se SubmissionError
	if xerrors.As(err, &se) {
		return se.Code == DuplicateOperation
	}
	return false
}

func duplicateOperationError(operationID string) error {
	return SubmissionError{
		Code:    DuplicateOperation,
		Message: fmt.Sprintf("operation %q already scheduled", operationID),
		frame:   xerrors.Caller(1),
	}
}
