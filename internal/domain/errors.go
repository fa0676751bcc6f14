package domain

import "errors"

// Sentinel errors for every way a settlement call can be rejected. Each
// failure leaves state untouched; callers match with errors.Is.
var (
	ErrUnauthorized         = errors.New("unauthorized caller")
	ErrNotFound             = errors.New("market not found")
	ErrInvalidState         = errors.New("invalid market state")
	ErrInvalidOptions       = errors.New("invalid market options")
	ErrInvalidOption        = errors.New("invalid option index")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDeadline      = errors.New("invalid deadline")
	ErrDeadlineNotReached   = errors.New("resolution deadline not reached")
	ErrDeadlinePassed       = errors.New("betting deadline passed")
	ErrCreatorNotConfigured = errors.New("market creator agent not configured")
	ErrResolverNotConfigured = errors.New("resolver oracle agent not configured")
	ErrNothingToClaim       = errors.New("nothing to claim")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidSignature     = errors.New("invalid request signature")
)
