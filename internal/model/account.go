package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CloudSyncAccount is one on-chain identity as stored in the encrypted
// cloud payload. The (CurrencyID, FreshAddress, DerivationMode, Index)
// tuple identifies the account.
type CloudSyncAccount struct {
	ID             string         `json:"id"`
	CurrencyID     string         `json:"currencyId"`
	FreshAddress   common.Address `json:"freshAddress"`
	DerivationMode string         `json:"derivationMode"`
	Index          uint32         `json:"index"`
	DerivationPath string         `json:"freshAddressPath,omitempty"`
}

// Validate checks the fields a decrypted payload must carry.
func (a CloudSyncAccount) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("account missing id")
	}
	if a.CurrencyID == "" {
		return fmt.Errorf("account %s missing currencyId", a.ID)
	}
	if a.FreshAddress == (common.Address{}) {
		return fmt.Errorf("account %s missing freshAddress", a.ID)
	}
	return nil
}

// CloudSyncData is the decrypted shape of a cloud sync payload.
type CloudSyncData struct {
	Accounts     []CloudSyncAccount `json:"accounts"`
	AccountNames map[string]string  `json:"accountNames"`
}

// Balance holds the hydrated balance of an account. Known is false when
// the balance fetch failed and the values should be rendered as unknown.
type Balance struct {
	Native *big.Int            `json:"native,omitempty"`
	Tokens map[string]*big.Int `json:"tokens,omitempty"`
	Fiat   string              `json:"fiat,omitempty"`
	Known  bool                `json:"known"`
}

// Account is an immutable account record: a synced identity plus its
// user-assigned name and, after hydration, its balance.
type Account struct {
	CloudSyncAccount
	Name    string   `json:"name"`
	Balance *Balance `json:"balance,omitempty"`
}
