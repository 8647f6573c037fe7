package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Validation errors: bad input shape, rejected before any state is touched.
var (
	// ErrInvalidDeadline is returned when a market is created with an end
	// time that is not in the future.
	ErrInvalidDeadline = errors.New("market deadline must be in the future")

	// ErrInvalidAmount is returned when a stake or deposit amount is zero.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidOutcome is returned when a choice/outcome is not A or B.
	ErrInvalidOutcome = errors.New("invalid outcome: must be A or B")

	// ErrInvalidTitle is returned when a market is created with empty
	// descriptive fields.
	ErrInvalidTitle = errors.New("market title and option labels are required")
)

// State guard errors: wrong lifecycle stage, rejected with no state change.
var (
	// ErrMarketNotFound is returned when no market matches the given id.
	ErrMarketNotFound = errors.New("market not found")

	// ErrMarketExpired is returned when a stake arrives after the market's
	// deadline, even though the stored stage still reads open.
	ErrMarketExpired = errors.New("market is past its staking deadline")

	// ErrMarketAlreadyResolved is returned on a second resolution attempt.
	ErrMarketAlreadyResolved = errors.New("market is already resolved")

	// ErrResolveTooEarly is returned when a resolution is attempted before
	// the market's deadline.
	ErrResolveTooEarly = errors.New("market deadline has not passed yet")

	// ErrMarketNotResolved is returned when a claim arrives before the
	// market has an outcome.
	ErrMarketNotResolved = errors.New("market is not resolved yet")

	// ErrChoiceMismatch is returned when a staker with an existing position
	// stakes on the other outcome of the same market.
	ErrChoiceMismatch = errors.New("position already staked on the other outcome")

	// ErrNoPosition is returned when a claim references a (market, staker)
	// pair with no stake.
	ErrNoPosition = errors.New("no position on this market")

	// ErrNotAWinner is returned when a claim comes from the losing side.
	ErrNotAWinner = errors.New("position is not on the winning outcome")

	// ErrAlreadyClaimed is returned on a second claim of the same position.
	ErrAlreadyClaimed = errors.New("payout already claimed")
)

// Authorization errors.
var (
	// ErrInvalidOracleSignature is returned when a resolution signature does
	// not verify against the configured oracle key.  Logged for audit: it
	// may indicate a forged attempt.
	ErrInvalidOracleSignature = errors.New("invalid oracle signature")

	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated identity lacks the
	// required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrChallengeInvalid is returned on login when the signed challenge
	// does not verify or has expired.
	ErrChallengeInvalid = errors.New("login challenge invalid or expired")
)

// Wallet errors.
var (
	// ErrWalletNotFound is returned when no wallet exists for a staker.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientBalance is returned when a wallet cannot fund a stake.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// ErrPayoutTransferFailed marks the one fatal, manually-reconciled
// condition: the claim flag is set but fund release failed.  Retrying
// automatically would risk double payment; the payout row stays in status
// "failed" until an operator reconciles it.
var ErrPayoutTransferFailed = errors.New("payout transfer failed after claim was recorded")

// ──────────────────────────────────────────────────────────────────────────────
// Taxonomy predicates
// ──────────────────────────────────────────────────────────────────────────────

// IsValidation returns true for bad-input errors that map to HTTP 400.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidDeadline,
		ErrInvalidAmount,
		ErrInvalidOutcome,
		ErrInvalidTitle,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true when err is an "entity not found" error (HTTP 404).
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrMarketNotFound,
		ErrNoPosition,
		ErrWalletNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for lifecycle state guard rejections (HTTP 409).
// These leave state unchanged and are safe to retry after the state changes.
func IsConflict(err error) bool {
	for _, target := range []error{
		ErrMarketExpired,
		ErrMarketAlreadyResolved,
		ErrResolveTooEarly,
		ErrMarketNotResolved,
		ErrChoiceMismatch,
		ErrNotAWinner,
		ErrAlreadyClaimed,
		ErrInsufficientBalance,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors (401/403).
func IsAuthError(err error) bool {
	for _, target := range []error{
		ErrInvalidOracleSignature,
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenInvalid,
		ErrChallengeInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
