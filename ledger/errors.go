package ledger

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the required role.
	ErrUnauthorized = errors.New("ledger: unauthorized")
	// ErrInvalidTier is returned for tiers outside 1..5.
	ErrInvalidTier = errors.New("ledger: invalid tier")
	// ErrInvalidIdentity is returned for the zero identity.
	ErrInvalidIdentity = errors.New("ledger: invalid identity")
	// ErrBelowQualifyingTier is the rejection outcome for sub-threshold tiers.
	// No grant is created, no counter is touched, no funds are locked.
	ErrBelowQualifyingTier = errors.New("ledger: tier below qualifying threshold")
	// ErrDailyCapReached is returned once an identity has exhausted its
	// qualifying grants for the current day bucket.
	ErrDailyCapReached = errors.New("ledger: daily cap reached")
	// ErrInsufficientFunds is returned when the free pool balance cannot cover
	// the requested amount.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrGrantNotFound is returned when no grant exists with the supplied id.
	ErrGrantNotFound = errors.New("ledger: grant not found")
	// ErrAlreadyClaimed is returned when claiming a grant that has already been
	// settled. Re-claiming is always rejected, never a silent no-op.
	ErrAlreadyClaimed = errors.New("ledger: grant already claimed")
	// ErrNotOwner is returned when the claim caller is not the recorded
	// claimant.
	ErrNotOwner = errors.New("ledger: caller is not the grant claimant")
	// ErrTransferFailed is returned when the funds transfer could not be
	// completed; all state changes of the claim are rolled back.
	ErrTransferFailed = errors.New("ledger: funds transfer failed")
	// ErrInvalidScore is returned for quality scores outside [0,1].
	ErrInvalidScore = errors.New("ledger: score outside [0,1]")
	// ErrInvalidAmount is returned for nil, zero or negative amounts.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)
