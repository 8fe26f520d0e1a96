package businessflow

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCalculateAmount(t *testing.T) {
	cases := map[int]int64{
		1:  29,
		2:  49,
		4:  89,
		5:  109,
		10: 209,
		20: 409,
	}
	for seats, want := range cases {
		assert.Equal(t, want, CalculateAmount(seats), "seats=%d", seats)
	}
}

func TestValidSeats(t *testing.T) {
	assert.False(t, ValidSeats(0))
	assert.False(t, ValidSeats(-3))
	assert.True(t, ValidSeats(1))
	assert.True(t, ValidSeats(20))
	assert.False(t, ValidSeats(21))
}

func TestPlanName(t *testing.T) {
	assert.Equal(t, "Solo", PlanName(1))
	assert.Equal(t, "Duo/Family", PlanName(2))
	assert.Equal(t, "Duo/Family", PlanName(4))
	assert.Equal(t, "Small Team", PlanName(5))
	assert.Equal(t, "Small Team", PlanName(10))
	assert.Equal(t, "Community", PlanName(11))
	assert.Equal(t, "Community", PlanName(20))
}

func TestRewardsFor(t *testing.T) {
	names := func(seats int) []string {
		var out []string
		for _, r := range RewardsFor(seats) {
			out = append(out, r.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Founder Badge"}, names(1))
	assert.Equal(t, []string{"Founder Badge"}, names(4))
	assert.Equal(t, []string{"Founder Badge", "Private Webinar"}, names(5))
	assert.Len(t, RewardsFor(10), 3)
	assert.Len(t, RewardsFor(15), 4)
	assert.Len(t, RewardsFor(20), 4)
	assert.Empty(t, RewardsFor(0))
}

func TestBuildQuote(t *testing.T) {
	quote, err := BuildQuote(5)
	require.NoError(t, err)
	assert.Equal(t, 5, quote.Seats)
	assert.Equal(t, int64(109), quote.TotalAmount)
	assert.Equal(t, "EUR", quote.Currency)
	assert.Equal(t, int64(29), quote.BaseSeatPrice)
	assert.Equal(t, int64(20), quote.AdditionalSeatPrice)
	assert.Equal(t, "Small Team", quote.Plan)
	require.Len(t, quote.Rewards, 2)
	assert.Equal(t, 5, quote.Rewards[1].MinSeats)

	_, err = BuildQuote(21)
	assert.ErrorIs(t, err, ErrInvalidSeats)
}

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		secret, err := GenerateSecret()
		require.NoError(t, err)
		require.Len(t, secret, 43)

		raw, err := base64.RawURLEncoding.DecodeString(secret)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		assert.False(t, seen[secret], "secret repeated")
		seen[secret] = true
	}
}

func TestHashSecret(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)

	hash, err := HashSecret(secret, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, secret, hash)
	assert.True(t, SecretMatches(hash, secret))
	assert.False(t, SecretMatches(hash, secret[:42]))
	assert.False(t, SecretMatches(hash, ""))
	assert.False(t, SecretMatches("", secret))

	other, err := HashSecret(secret, bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "hashes are salted")

	t.Run("OutOfRangeCostFallsBackToDefault", func(t *testing.T) {
		hash, err := HashSecret("abc", 99)
		require.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.DefaultCost, cost)
	})
}
