package app

import "github.com/myfans/subscription-service/internal/domain"

// FeeCalculator applies the platform fee, expressed in basis points, to plan amounts.
// Results are rounded to stroop precision (7 fractional digits), not to cents.
type FeeCalculator struct {
	FeeBps int64
}

// ComputeFee returns round7(amount * FeeBps / 10000).
func (f FeeCalculator) ComputeFee(amount domain.Amount) domain.Amount {
	return amount.MulBasisPoints(f.FeeBps)
}

// ComputeTotal returns amount + ComputeFee(amount). Totals that do not fit in an
// Amount fail with domain.ErrAmountOverflow.
func (f FeeCalculator) ComputeTotal(amount domain.Amount) (domain.Amount, error) {
	return amount.Add(f.ComputeFee(amount))
}

// price returns the fee and total for a plan amount.
func (f FeeCalculator) price(amount domain.Amount) (fee, total domain.Amount, err error) {
	fee = f.ComputeFee(amount)
	total, err = amount.Add(fee)
	if err != nil {
		return 0, 0, invalidRequest("plan amount %s is out of range", amount)
	}
	return fee, total, nil
}
