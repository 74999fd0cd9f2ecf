package apperror

import "errors"

// Kind describes a stable error category that can be mapped to HTTP status codes.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"

	// Coupon lifecycle outcomes. These are expected, typed failures returned
	// to callers; only KindInvalidState signals a bug upstream.
	KindNotEligible     Kind = "not_eligible"
	KindInvalidState    Kind = "invalid_state"
	KindInvalidToken    Kind = "invalid_token"
	KindWrongPartner    Kind = "wrong_partner"
	KindExpired         Kind = "expired"
	KindAlreadyRedeemed Kind = "already_redeemed"
)

// Error is a typed error with a stable Kind and a human-readable message.
// Msg should be safe to return to clients for every kind except KindInvalidState.
// Meta carries extra fields for the client (e.g. the original redemption time).
type Error struct {
	Kind Kind
	Msg  string
	Err  error
	Meta map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string, err error) error     { return New(KindNotFound, msg, err) }
func Validation(msg string, err error) error   { return New(KindValidation, msg, err) }
func Conflict(msg string, err error) error     { return New(KindConflict, msg, err) }
func NotEligible(msg string, err error) error  { return New(KindNotEligible, msg, err) }
func InvalidState(msg string, err error) error { return New(KindInvalidState, msg, err) }
func InvalidToken(msg string, err error) error { return New(KindInvalidToken, msg, err) }
func WrongPartner(msg string, err error) error { return New(KindWrongPartner, msg, err) }
func Expired(msg string, err error) error      { return New(KindExpired, msg, err) }

// AlreadyRedeemed builds the double-redemption failure with the original
// redemption time attached for the partner UI.
func AlreadyRedeemed(msg, redeemedAt string) error {
	return &Error{
		Kind: KindAlreadyRedeemed,
		Msg:  msg,
		Meta: map[string]string{"redeemed_at": redeemedAt},
	}
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Meta returns the meta fields attached to a typed error, or nil.
func Meta(err error) map[string]string {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	return e.Meta
}
