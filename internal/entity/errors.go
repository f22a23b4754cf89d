package entity

import "errors"

// Kind classifies domain errors so transports can map them without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindInvalidTransition
	KindConflict
	KindGatewayUnavailable
	KindSignatureMismatch
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindGatewayUnavailable:
		return "gateway_unavailable"
	case KindSignatureMismatch:
		return "signature_mismatch"
	case KindDuplicate:
		return "duplicate"
	default:
		return "internal"
	}
}

// Error is a domain error with a stable, user-safe message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// NewError builds a domain error of the given kind.
func NewError(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// ValidationError reports malformed caller input.
func ValidationError(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// KindOf returns the kind of the first domain error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Message returns the user-facing message of a domain error, or a generic one.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return "internal server error"
}

var (
	ErrEmptyCart          = &Error{Kind: KindValidation, Msg: "cart is empty"}
	ErrInvalidRating      = &Error{Kind: KindValidation, Msg: "rating must be between 1 and 5"}
	ErrItemNotFound       = &Error{Kind: KindNotFound, Msg: "item not found"}
	ErrOrderNotFound      = &Error{Kind: KindNotFound, Msg: "order not found"}
	ErrAddressNotFound    = &Error{Kind: KindNotFound, Msg: "address not found"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Msg: "user not found"}
	ErrReviewNotFound     = &Error{Kind: KindNotFound, Msg: "review not found"}
	ErrCardNotFound       = &Error{Kind: KindNotFound, Msg: "saved card not found"}
	ErrUnknownReference   = &Error{Kind: KindNotFound, Msg: "unknown payment reference"}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Msg: "invalid email or password"}
	ErrTokenExpired       = &Error{Kind: KindUnauthorized, Msg: "token is invalid or expired"}
	ErrNotVerified        = &Error{Kind: KindForbidden, Msg: "account is not verified"}
	ErrOrderNotOwned      = &Error{Kind: KindForbidden, Msg: "order does not belong to this user"}
	ErrForbidden          = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Msg: "order status does not allow this action"}
	ErrCancellationDenied = &Error{Kind: KindInvalidTransition, Msg: "order can no longer be cancelled"}
	ErrOrderNotPaid       = &Error{Kind: KindInvalidTransition, Msg: "order has not been paid"}
	ErrEmailTaken         = &Error{Kind: KindConflict, Msg: "email is already registered"}
	ErrGatewayUnavailable = &Error{Kind: KindGatewayUnavailable, Msg: "payment gateway unavailable, try again"}
	ErrSignatureMismatch  = &Error{Kind: KindSignatureMismatch, Msg: "invalid signature"}
	ErrDuplicateEvent     = &Error{Kind: KindDuplicate, Msg: "already applied"}
)
