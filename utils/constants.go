package utils

import (
	"time"
)

// Founder Pass pricing, whole euros per month
const (
	// BaseSeatPrice is the monthly price of the first seat
	BaseSeatPrice = 29

	// AdditionalSeatPrice is the monthly price of every seat after the first
	AdditionalSeatPrice = 20

	MinSeatsPerPledge = 1
	MaxSeatsPerPledge = 20

	EuroCurrency = "EUR"
)

// Vault goal constants
const (
	// VaultSeatGoal is the number of reserved seats that unlocks the founder cohort
	VaultSeatGoal = 400

	// VaultStatusSingletonID is the id of the only vault_status row
	VaultStatusSingletonID = 1
)

// Secret constants
const (
	// PledgeSecretBytes is the amount of random bytes behind a cancellation secret (256 bits)
	PledgeSecretBytes = 32
)

// Request and cache constants
const (
	// RequestTimeout bounds every request-scoped call chain
	RequestTimeout = 30 * time.Second

	// VaultStatusCacheKey is the redis key (without prefix) of the cached vault status
	VaultStatusCacheKey = "vault:status"

	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
