package businessflow

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/healthiphi/founder-pass/app/dto"
	"github.com/healthiphi/founder-pass/utils"
	"golang.org/x/crypto/bcrypt"
)

// FounderReward is a perk unlocked at a minimum seat count
type FounderReward struct {
	Name        string
	MinSeats    int
	Description string
}

var founderRewards = []FounderReward{
	{Name: "Founder Badge", MinSeats: 1, Description: "Exclusive founder status recognition"},
	{Name: "Private Webinar", MinSeats: 5, Description: "Access to exclusive founder webinars"},
	{Name: "Blue Lagoon Access", MinSeats: 10, Description: "Premium Blue Lagoon experience"},
	{Name: "Engraved Plaque", MinSeats: 15, Description: "Personalized recognition plaque"},
}

// ValidSeats reports whether seats is inside the allowed range
func ValidSeats(seats int) bool {
	return seats >= utils.MinSeatsPerPledge && seats <= utils.MaxSeatsPerPledge
}

// CalculateAmount returns the monthly price in whole euros. Callers validate seats first.
func CalculateAmount(seats int) int64 {
	if seats <= 1 {
		return utils.BaseSeatPrice
	}
	return utils.BaseSeatPrice + int64(seats-1)*utils.AdditionalSeatPrice
}

// PlanName is the marketing tier for a seat count
func PlanName(seats int) string {
	switch {
	case seats <= 1:
		return "Solo"
	case seats <= 4:
		return "Duo/Family"
	case seats <= 10:
		return "Small Team"
	default:
		return "Community"
	}
}

// RewardsFor lists the rewards unlocked by a seat count, lowest threshold first
func RewardsFor(seats int) []FounderReward {
	var unlocked []FounderReward
	for _, r := range founderRewards {
		if seats >= r.MinSeats {
			unlocked = append(unlocked, r)
		}
	}
	return unlocked
}

// BuildQuote prices a seat count for display
func BuildQuote(seats int) (*dto.PledgeQuoteResponse, error) {
	if !ValidSeats(seats) {
		return nil, ErrInvalidSeats
	}

	rewards := RewardsFor(seats)
	out := make([]dto.FounderRewardDTO, 0, len(rewards))
	for _, r := range rewards {
		out = append(out, dto.FounderRewardDTO{Name: r.Name, MinSeats: r.MinSeats, Description: r.Description})
	}

	return &dto.PledgeQuoteResponse{
		Seats:               seats,
		TotalAmount:         CalculateAmount(seats),
		Currency:            utils.EuroCurrency,
		BaseSeatPrice:       utils.BaseSeatPrice,
		AdditionalSeatPrice: utils.AdditionalSeatPrice,
		Plan:                PlanName(seats),
		Rewards:             out,
	}, nil
}

// GenerateSecret returns 256 random bits encoded as unpadded base64url
func GenerateSecret() (string, error) {
	b := make([]byte, utils.PledgeSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate pledge secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecret hashes a cancellation secret for storage
func HashSecret(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pledge secret: %w", err)
	}
	return string(hash), nil
}

// SecretMatches compares a presented secret with a stored hash
func SecretMatches(hash, secret string) bool {
	if hash == "" || secret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
