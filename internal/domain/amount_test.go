package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "10", want: "10.0000000", ok: true},
		{input: "10.5", want: "10.5000000", ok: true},
		{input: " 0.0000001 ", want: "0.0000001", ok: true},
		{input: "+3.25", want: "3.2500000", ok: true},
		{input: "99999", want: "99999.0000000", ok: true},
		{input: "", ok: false},
		{input: "-1", ok: false},
		{input: "1.", ok: false},
		{input: ".5", ok: false},
		{input: "1e5", ok: false},
		{input: "abc", ok: false},
		{input: "0.00000001", ok: false},
		{input: "99999999999999999999", ok: false},
		{input: "922337203685.4775807", want: "922337203685.4775807", ok: true},
		{input: "922337203685.4775808", ok: false},
		{input: "922337203685.9999999", ok: false},
		{input: "922337203686", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if !tt.ok {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmountMulBasisPoints(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		bps    int64
		want   string
	}{
		{name: "five percent of ten", amount: "10", bps: 500, want: "0.5000000"},
		{name: "zero fee", amount: "10", bps: 0, want: "0.0000000"},
		{name: "full amount", amount: "12.3456789", bps: 10000, want: "12.3456789"},
		{name: "rounds half up", amount: "0.0000010", bps: 500, want: "0.0000001"},
		{name: "rounds down below half", amount: "0.0000009", bps: 500, want: "0.0000000"},
		{name: "fractional plan price", amount: "7.1234567", bps: 250, want: "0.1780864"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParseAmount(tt.amount).MulBasisPoints(tt.bps)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmountAdd(t *testing.T) {
	sum, err := MustParseAmount("10").Add(MustParseAmount("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "10.5000000", sum.String())

	sum, err = (MaxAmount - 1).Add(1)
	require.NoError(t, err)
	assert.Equal(t, MaxAmount, sum)

	_, err = MustParseAmount("900000000000").Add(MustParseAmount("45000000000"))
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestAmountShortfall(t *testing.T) {
	balance := MustParseAmount("1000")

	assert.Equal(t, Amount(0), balance.Shortfall(MustParseAmount("10")))
	assert.Equal(t, "98999.0000000", balance.Shortfall(MustParseAmount("99999")).String())
}

func TestAmountJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Total Amount `json:"total"`
	}{Total: MustParseAmount("10.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"10.5000000"}`, string(payload))

	var decoded struct {
		FromString Amount `json:"from_string"`
		FromNumber Amount `json:"from_number"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"from_string":"2.5","from_number":3}`), &decoded))
	assert.Equal(t, "2.5000000", decoded.FromString.String())
	assert.Equal(t, "3.0000000", decoded.FromNumber.String())

	require.Error(t, json.Unmarshal([]byte(`{"from_string":"-2"}`), &decoded))
}

func TestCheckoutEffectiveStatus(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	checkout := Checkout{Status: CheckoutStatusPending, CreatedAt: created, ExpiresAt: created.Add(15 * time.Minute)}

	assert.Equal(t, CheckoutStatusPending, checkout.EffectiveStatus(created.Add(15*time.Minute)))
	assert.Equal(t, CheckoutStatusExpired, checkout.EffectiveStatus(created.Add(15*time.Minute+time.Second)))

	checkout.Status = CheckoutStatusCompleted
	assert.Equal(t, CheckoutStatusCompleted, checkout.EffectiveStatus(created.Add(time.Hour)))
}

func TestSubscriptionEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sub := Subscription{Status: SubscriptionStatusActive, Expiry: now.Unix() + 60}

	assert.True(t, sub.IsActiveAt(now))
	assert.Equal(t, SubscriptionStatusActive, sub.EffectiveStatus(now))
	assert.False(t, sub.IsActiveAt(now.Add(time.Minute)))
	assert.Equal(t, SubscriptionStatusExpired, sub.EffectiveStatus(now.Add(time.Minute)))

	sub.Status = SubscriptionStatusCancelled
	assert.Equal(t, SubscriptionStatusCancelled, sub.EffectiveStatus(now.Add(time.Hour)))
}
