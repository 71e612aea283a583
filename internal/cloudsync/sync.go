// Package cloudsync retrieves the user's encrypted account list from the
// cloud sync backend and reconciles it into account records.
package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"connectkit/internal/accounts"
	ckcommon "connectkit/internal/common"
	"connectkit/internal/keyring"
	"connectkit/internal/model"
)

// PayloadAPI fetches the encrypted account blob.
type PayloadAPI interface {
	FetchPayload(ctx context.Context, applicationPath, trustChainID string, version int) ([]byte, bool, error)
}

// BalanceAPI reads on-chain balances for hydration.
type BalanceAPI interface {
	BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
}

// RatesAPI prices a currency for fiat valuation.
type RatesAPI interface {
	Rate(ctx context.Context, currencyID, vs string) (string, error)
}

// Syncer drives cloud account sync and balance hydration.
type Syncer struct {
	payloads PayloadAPI
	balances BalanceAPI
	rates    RatesAPI
	accounts *accounts.List
	version  int
	tokens   map[string]common.Address // token symbol -> contract, hydrated per account
	fiat     string
	log      *zap.Logger
}

// New creates a syncer writing into list. balances and rates may be nil
// when hydration is not used.
func New(payloads PayloadAPI, balances BalanceAPI, rates RatesAPI, list *accounts.List, version int, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		payloads: payloads,
		balances: balances,
		rates:    rates,
		accounts: list,
		version:  version,
		tokens:   map[string]common.Address{},
		fiat:     "usd",
		log:      log,
	}
}

// WatchToken registers an ERC-20 contract whose balance is fetched during
// hydration.
func (s *Syncer) WatchToken(symbol string, contract common.Address) {
	s.tokens[symbol] = contract
}

// FetchAndApply fetches the payload keyed by the auth context, decrypts
// and parses it, and replaces the held account set. The previous list
// stays visible until the new one is fully validated: a fetch or decrypt
// failure never clears existing accounts.
func (s *Syncer) FetchAndApply(ctx context.Context, auth model.AuthContext) ([]model.Account, error) {
	if len(auth.EncryptionKey) == 0 || auth.TrustChainID == "" {
		return nil, model.ErrMissingAuthContext
	}

	payload, found, err := s.payloads.FetchPayload(ctx, auth.ApplicationPath, auth.TrustChainID, s.version)
	if err != nil {
		return nil, &model.AccountsFetchError{Err: err}
	}
	if !found {
		// No payload yet for this trustchain: an empty wallet, not an error.
		s.accounts.Replace(nil)
		return nil, nil
	}

	plaintext, err := keyring.Decrypt(auth.EncryptionKey, payload)
	if err != nil {
		return nil, &model.AccountsFetchError{Err: err}
	}

	var data model.CloudSyncData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, &model.AccountsFetchError{Err: fmt.Errorf("failed to parse sync payload: %w", err)}
	}

	list := make([]model.Account, 0, len(data.Accounts))
	for i, raw := range data.Accounts {
		if err := raw.Validate(); err != nil {
			return nil, &model.AccountsFetchError{Err: err}
		}
		name := data.AccountNames[raw.ID]
		if name == "" {
			name = fmt.Sprintf("Account %d", i+1)
		}
		list = append(list, model.Account{CloudSyncAccount: raw, Name: name})
	}

	s.accounts.Replace(list)
	s.log.Info("cloud accounts applied", zap.Int("count", len(list)))
	return list, nil
}

// HydrateWithBalance enriches each held account with native and token
// balances plus a fiat valuation. A balance fetch failure degrades that
// account's balance to unknown instead of failing the pass.
func (s *Syncer) HydrateWithBalance(ctx context.Context) []model.Account {
	list := s.accounts.All()
	if len(list) == 0 || s.balances == nil {
		return list
	}

	rate := ""
	if s.rates != nil {
		r, err := s.rates.Rate(ctx, "ethereum", s.fiat)
		if err != nil {
			s.log.Warn("fiat rate unavailable", zap.Error(err))
		} else {
			rate = r
		}
	}

	for i := range list {
		list[i].Balance = s.hydrateOne(ctx, list[i], rate)
	}
	s.accounts.Replace(list)
	return list
}

func (s *Syncer) hydrateOne(ctx context.Context, account model.Account, rate string) *model.Balance {
	native, err := s.balances.BalanceAt(ctx, account.FreshAddress)
	if err != nil {
		s.log.Warn("balance fetch failed",
			zap.String("account", account.ID),
			zap.Error(err))
		return &model.Balance{Known: false}
	}

	balance := &model.Balance{Native: native, Known: true}
	if rate != "" {
		if fiat, err := ckcommon.FiatValue(native, rate); err == nil {
			balance.Fiat = fiat
		}
	}

	for symbol, contract := range s.tokens {
		amount, err := s.balances.TokenBalance(ctx, contract, account.FreshAddress)
		if err != nil {
			// One token failing does not poison the rest.
			s.log.Warn("token balance fetch failed",
				zap.String("account", account.ID),
				zap.String("token", symbol),
				zap.Error(err))
			continue
		}
		if balance.Tokens == nil {
			balance.Tokens = map[string]*big.Int{}
		}
		balance.Tokens[symbol] = amount
	}
	return balance
}
