package domain

// AssetBalance is one trustline (or the native balance) of a Stellar account.
type AssetBalance struct {
	Code     string  `json:"code"`
	Issuer   *string `json:"issuer,omitempty"`
	Balance  Amount  `json:"balance"`
	IsNative bool    `json:"is_native"`
}

// WalletStatus is what the wallet adapter reports for an address.
type WalletStatus struct {
	Address     string         `json:"address"`
	IsConnected bool           `json:"is_connected"`
	Balances    []AssetBalance `json:"balances"`
}

// BalanceOf finds the balance for an asset. A nil issuer matches any issuer for the code.
func (w WalletStatus) BalanceOf(code string, issuer *string) (Amount, bool) {
	for _, b := range w.Balances {
		if b.Code != code {
			continue
		}
		if issuer != nil && b.Issuer != nil && *issuer != *b.Issuer {
			continue
		}
		return b.Balance, true
	}
	return 0, false
}

// BalanceValidation is the outcome of a sufficiency check. An insufficient balance is a
// normal result, not an error.
type BalanceValidation struct {
	Valid     bool    `json:"valid"`
	AssetCode string  `json:"asset_code"`
	Balance   Amount  `json:"balance"`
	Required  Amount  `json:"required"`
	Shortfall *Amount `json:"shortfall,omitempty"`
}
