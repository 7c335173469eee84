package core

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrValidation          = errors.New("validation failed")
	ErrReceiptUnreadable   = errors.New("receipt unreadable")
	ErrReceiptTooLarge     = errors.New("receipt too large")
	ErrInvalidCredentials  = errors.New("invalid credentials")

	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAmountTooLarge     = errors.New("amount too large")
	ErrBalanceLimit       = errors.New("balance limit exceeded")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidDirection   = errors.New("invalid direction")
	ErrEmptyUser          = errors.New("empty user id")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyTitle         = errors.New("empty title")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// DomainError is a recoverable failure that carries the message shown to the user.
// errors.Is matches on Kind.
type DomainError struct {
	Kind    error
	Message string
}

func NewDomainError(kind error, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Kind
}

// Result is the success/failure value handed to presentation code.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ResultOf converts an operation error into a Result.
func ResultOf(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	var de *DomainError
	if errors.As(err, &de) {
		return Result{Message: de.Message}
	}
	return Result{Message: "Unexpected error, please try again."}
}
