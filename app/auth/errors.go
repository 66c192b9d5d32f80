package auth

import "errors"

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrBlocked            = errors.New("too many failed attempts")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrOTPExpired         = errors.New("otp code expired")
	ErrOTPInvalid         = errors.New("otp code invalid")
	ErrOTPTooSoon         = errors.New("otp code requested too soon")
	ErrOTPTooManyAttempts = errors.New("too many otp attempts")
)
