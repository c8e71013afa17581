package library

import (
	"errors"
	"fmt"
)

// Kind groups errors by how the console should react to them.
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindIO           Kind = "IO"
	KindPrecondition Kind = "PRECONDITION"
)

// Error is the error type returned by every Manager operation.
//
// Code identifies the precise failure and is what errors.Is compares, so a
// sentinel such as ErrNotAvailable matches any Error carrying its code even
// when the message was specialised for the book or user at hand.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
	Fields  []FieldError
}

// FieldError is a single failed validation rule.
type FieldError struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Kind == KindIO {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels. Compare with errors.Is.
var (
	ErrBookNotFound        = &Error{Kind: KindNotFound, Code: "BOOK_NOT_FOUND", Message: "book not found"}
	ErrAccountNotFound     = &Error{Kind: KindNotFound, Code: "ACCOUNT_NOT_FOUND", Message: "account not found"}
	ErrSubmissionNotFound  = &Error{Kind: KindNotFound, Code: "SUBMISSION_NOT_FOUND", Message: "submission not found"}
	ErrNoSuchBorrowRecord  = &Error{Kind: KindNotFound, Code: "NO_SUCH_BORROW_RECORD", Message: "you don't have this book borrowed"}
	ErrAlreadyExists       = &Error{Kind: KindConflict, Code: "ALREADY_EXISTS", Message: "username is already taken"}
	ErrDuplicateISBN       = &Error{Kind: KindConflict, Code: "DUPLICATE_ISBN", Message: "a book with this ISBN already exists"}
	ErrAlreadyFavorite     = &Error{Kind: KindConflict, Code: "ALREADY_FAVORITE", Message: "book is already in favorites"}
	ErrNotAvailable        = &Error{Kind: KindPrecondition, Code: "NOT_AVAILABLE", Message: "book is currently not available"}
	ErrNotBorrowedBySelf   = &Error{Kind: KindPrecondition, Code: "NOT_BORROWED_BY_SELF", Message: "you haven't borrowed this book"}
	ErrInvalidCredentials  = &Error{Kind: KindPrecondition, Code: "INVALID_CREDENTIALS", Message: "incorrect username or password"}
	ErrPasswordMismatch    = &Error{Kind: KindValidation, Code: "PASSWORD_MISMATCH", Message: "passwords do not match"}
	ErrConfirmationMissing = &Error{Kind: KindPrecondition, Code: "CONFIRMATION_MISSING", Message: "deletion not confirmed"}
	ErrInvalidISBN         = &Error{Kind: KindValidation, Code: "INVALID_ISBN", Message: "invalid ISBN"}
	ErrValidation          = &Error{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: "validation failed"}
	ErrStorage             = &Error{Kind: KindIO, Code: "STORAGE", Message: "storage error"}
)

// withMessage copies a sentinel with a more specific message.
func withMessage(sentinel *Error, format string, args ...any) *Error {
	e := *sentinel
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

func storageError(op string, cause error) *Error {
	return &Error{Kind: KindIO, Code: ErrStorage.Code, Message: op + " failed", Cause: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindIO for
// foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}
