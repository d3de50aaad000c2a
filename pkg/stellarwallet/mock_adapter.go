/**
 * @description
 * Wallet adapter that reports fixed balances for any address. It stands in for a Horizon
 * account lookup until real ledger balance queries are wired.
 */
package stellarwallet

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/myfans/subscription-service/internal/domain"
)

// DefaultUSDCIssuer is the testnet USDC issuer reported by the mock.
const DefaultUSDCIssuer = "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5"

var ErrEmptyAddress = errors.New("wallet address is required")

// MockAdapter returns the same configurable balances for every address. Per-address
// overrides can be installed with SetBalances.
type MockAdapter struct {
	mu        sync.RWMutex
	defaults  []domain.AssetBalance
	overrides map[string][]domain.AssetBalance
}

// DefaultBalances are 1000 XLM and 500 USDC.
func DefaultBalances() []domain.AssetBalance {
	issuer := DefaultUSDCIssuer
	return []domain.AssetBalance{
		{Code: "XLM", Balance: domain.MustParseAmount("1000"), IsNative: true},
		{Code: "USDC", Issuer: &issuer, Balance: domain.MustParseAmount("500")},
	}
}

// NewMockAdapter creates a mock wallet. With no balances the defaults are used.
func NewMockAdapter(balances ...domain.AssetBalance) *MockAdapter {
	if len(balances) == 0 {
		balances = DefaultBalances()
	}
	return &MockAdapter{
		defaults:  balances,
		overrides: make(map[string][]domain.AssetBalance),
	}
}

// SetBalances replaces the balances reported for one address.
func (m *MockAdapter) SetBalances(address string, balances ...domain.AssetBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[strings.TrimSpace(address)] = balances
}

// GetWallet implements the wallet adapter contract.
func (m *MockAdapter) GetWallet(ctx context.Context, address string) (*domain.WalletStatus, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	m.mu.RLock()
	balances, ok := m.overrides[address]
	if !ok {
		balances = m.defaults
	}
	copied := make([]domain.AssetBalance, len(balances))
	copy(copied, balances)
	m.mu.RUnlock()

	return &domain.WalletStatus{
		Address:     address,
		IsConnected: true,
		Balances:    copied,
	}, nil
}
