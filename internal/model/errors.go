package model

import (
    "errors"
    "fmt"
)

// ErrorKind classifies a failure for callers.  Every business failure
// maps to exactly one kind; anything unclassified is StoreUnavailable.
type ErrorKind string

const (
    NotFound              ErrorKind = "not_found"
    InvalidState          ErrorKind = "invalid_state"
    AuthorizationDenied   ErrorKind = "authorization_denied"
    InsufficientInventory ErrorKind = "insufficient_inventory"
    InvalidArgument       ErrorKind = "invalid_argument"
    StoreUnavailable      ErrorKind = "store_unavailable"
)

// Error is a business failure with a stable kind.  Values are compared by
// identity, so the sentinels below work with errors.Is.
type Error struct {
    Kind ErrorKind
    Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(kind ErrorKind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

var (
    ErrEventNotFound       = newErr(NotFound, "event not found")
    ErrTicketNotFound      = newErr(NotFound, "ticket not found")
    ErrSaleNotFound        = newErr(NotFound, "sale not found")
    ErrListingNotFound     = newErr(NotFound, "listing not found")
    ErrTransactionNotFound = newErr(NotFound, "transaction not found")
    ErrUserNotFound        = newErr(NotFound, "user not found")
)

var (
    ErrEventCancelled      = newErr(InvalidState, "event has been cancelled")
    ErrAlreadyUsed         = newErr(InvalidState, "ticket has already been used")
    ErrTicketCancelled     = newErr(InvalidState, "ticket has been cancelled")
    ErrTicketListed        = newErr(InvalidState, "ticket is listed for resale")
    ErrAlreadyListed       = newErr(InvalidState, "ticket already has a pending resale listing")
    ErrTicketNotValid      = newErr(InvalidState, "ticket is not valid")
    ErrListingNotPending   = newErr(InvalidState, "this resale is no longer available")
    ErrIllegalTransition   = newErr(InvalidState, "illegal transaction status transition")
    ErrCapacityBelowIssued = newErr(InvalidState, "capacity cannot be lower than tickets already issued")
    ErrSaleNotCancellable  = newErr(InvalidState, "sale can no longer be cancelled")
)

var (
    ErrNotOwner     = newErr(AuthorizationDenied, "you do not own this ticket")
    ErrSelfPurchase = newErr(AuthorizationDenied, "you cannot buy your own resale")
    ErrNotOrganizer = newErr(AuthorizationDenied, "only the event organizer may do this")
    ErrNotSaleBuyer = newErr(AuthorizationDenied, "only the buyer may cancel this sale")
)

var (
    ErrInvalidQuantity = newErr(InvalidArgument, "quantity must be at least 1")
    ErrInvalidPrice    = newErr(InvalidArgument, "price must be greater than zero with at most 2 decimal places")
    ErrInvalidCapacity = newErr(InvalidArgument, "capacity must be at least 1")
    ErrInvalidEvent    = newErr(InvalidArgument, "event name, date and place are required and price must be a non-negative amount with at most 2 decimal places")
)

// ErrEmailExists is returned by user stores on a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// ErrInsufficientInventory matches any *InsufficientInventoryError.
var ErrInsufficientInventory = newErr(InsufficientInventory, "insufficient inventory")

// InsufficientInventoryError reports how many units were left when a
// reservation could not be satisfied.
type InsufficientInventoryError struct {
    Requested int
    Remaining int
}

func (e *InsufficientInventoryError) Error() string {
    return fmt.Sprintf("only %d tickets remaining", e.Remaining)
}

func (e *InsufficientInventoryError) Is(target error) bool { return target == ErrInsufficientInventory }

// KindOf classifies err.  Errors that are not business failures (driver
// errors, context cancellation, broken connections) are StoreUnavailable.
func KindOf(err error) ErrorKind {
    var e *Error
    if errors.As(err, &e) {
        return e.Kind
    }
    var ie *InsufficientInventoryError
    if errors.As(err, &ie) {
        return InsufficientInventory
    }
    return StoreUnavailable
}

// IsBusiness reports whether err is an expected, typed business outcome
// rather than an infrastructure failure.
func IsBusiness(err error) bool {
    return err != nil && KindOf(err) != StoreUnavailable
}
