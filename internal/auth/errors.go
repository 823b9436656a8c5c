package auth

import "errors"

var (
	ErrInvalidPhone = errors.New("invalid phone number format")

	ErrOTPNotFound    = errors.New("OTP not found")
	ErrOTPExpired     = errors.New("OTP expired")
	ErrOTPIncorrect   = errors.New("incorrect OTP")
	ErrOTPAlreadyUsed = errors.New("OTP already used")

	ErrDeliveryFailed = errors.New("OTP delivery failed")

	ErrIdentityNotFound = errors.New("user not found")
	ErrIdentityExists   = errors.New("user already exists")
	ErrInvalidRole      = errors.New("unknown role")

	ErrUnauthenticated  = errors.New("authentication required")
	ErrPermissionDenied = errors.New("insufficient permissions")
	ErrInvalidToken     = errors.New("invalid or expired token")
)
