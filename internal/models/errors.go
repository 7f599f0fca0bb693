package models

import "errors"

// Domain errors returned by the service layer. Handlers map these to
// RFC 7807 responses; none of them indicate a storage fault.
var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSelfReference     = errors.New("operation may not target the caller's own account")
	ErrAccountNotFound   = errors.New("account not found")
	ErrUnknownCurrency   = errors.New("unknown currency")
	ErrListingNotFound   = errors.New("listing not found")
	ErrInvalidListing    = errors.New("listing description must not be empty")
	ErrListingNotActive  = errors.New("listing is no longer active")
	ErrInvalidRating     = errors.New("rating value must be +1 or -1")
	ErrAlreadyRated      = errors.New("rating cooldown has not elapsed for this user")
	ErrReferenceConflict = errors.New("reference already settled with different parameters")
)
