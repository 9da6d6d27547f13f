// Package payments is the pull ledger. Rental fees accrue here per payee
// and token; payees withdraw on their own schedule.
package payments

import (
	"context"
	"fmt"

	"renthub-services/renthub/bridge"
	"renthub-services/renthub/events"
	"renthub-services/renthub/rentlog"
	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

type Manager struct {
	store      store.BalanceStore
	transferer bridge.TokenTransferer
	roles      types.RoleGate
	events     events.Publisher
}

func NewManager(s store.BalanceStore, transferer bridge.TokenTransferer, roles types.RoleGate, publisher events.Publisher) *Manager {
	return &Manager{
		store:      s,
		transferer: transferer,
		roles:      roles,
		events:     publisher,
	}
}

// WithdrawProtocolFunds pays protocol earnings out to the recipient.
// Supervisor gated.
func (m *Manager) WithdrawProtocolFunds(ctx context.Context, caller common.Address, token common.Address, amount decimal.Decimal, recipient common.Address) error {
	err := m.roles.RequireSupervisor(ctx, caller)
	if err != nil {
		return terror.Error(err, "caller may not withdraw protocol funds")
	}
	return m.withdraw(ctx, types.ProtocolPayee(), token, amount, recipient)
}

// WithdrawUniverseFunds pays universe earnings out to the recipient.
// Universe owner gated.
func (m *Manager) WithdrawUniverseFunds(ctx context.Context, caller common.Address, universeID int64, token common.Address, amount decimal.Decimal, recipient common.Address) error {
	err := m.roles.RequireUniverseOwner(ctx, universeID, caller)
	if err != nil {
		return terror.Error(err, "caller may not withdraw universe funds")
	}
	return m.withdraw(ctx, types.UniversePayee(universeID), token, amount, recipient)
}

// WithdrawUserFunds pays the caller's own accrued earnings out to the
// recipient. Only the account itself may withdraw.
func (m *Manager) WithdrawUserFunds(ctx context.Context, caller common.Address, account common.Address, token common.Address, amount decimal.Decimal, recipient common.Address) error {
	if caller != account {
		return terror.Error(fmt.Errorf("caller %s may not withdraw for account %s", caller.Hex(), account.Hex()), "caller may not withdraw another account's funds")
	}
	return m.withdraw(ctx, types.UserPayee(account), token, amount, recipient)
}

// withdraw debits the ledger then moves the tokens. A zero or negative
// amount and an overdraw both fail before any state changes.
func (m *Manager) withdraw(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal, recipient common.Address) error {
	if !amount.IsPositive() {
		return terror.Error(&types.InvalidWithdrawalAmountError{Amount: amount}, "withdrawal amount must be positive")
	}

	balance, err := m.store.Balance(ctx, payee, token)
	if err != nil {
		return terror.Error(err)
	}
	if amount.GreaterThan(balance) {
		return terror.Error(&types.InsufficientBalanceError{Balance: balance}, "withdrawal exceeds the available balance")
	}

	err = m.store.SubBalance(ctx, payee, token, amount)
	if err != nil {
		return terror.Error(err, "could not debit the ledger")
	}

	err = m.transferer.Transfer(ctx, token, recipient, amount)
	if err != nil {
		// Re-credit so the ledger matches what actually moved.
		creditErr := m.store.AddBalance(ctx, payee, token, amount)
		if creditErr != nil {
			rentlog.L.Error().Err(creditErr).
				Str("token", token.Hex()).
				Str("amount", amount.String()).
				Msg("failed to re-credit ledger after transfer failure")
		}
		return terror.Error(err, "token transfer failed")
	}

	m.events.Publish(payeeURI(payee), events.HubKeyFundsWithdrawn, &events.FundsWithdrawn{
		Payee:     payee,
		Token:     token,
		Amount:    amount,
		Recipient: recipient,
	})
	rentlog.L.Info().
		Str("token", token.Hex()).
		Str("amount", amount.String()).
		Str("recipient", recipient.Hex()).
		Msg("funds withdrawn")
	return nil
}

// ProtocolBalance returns the protocol's accrued balance for one token.
func (m *Manager) ProtocolBalance(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	return m.balance(ctx, types.ProtocolPayee(), token)
}

func (m *Manager) ProtocolBalances(ctx context.Context) ([]*types.TokenBalance, error) {
	return m.balances(ctx, types.ProtocolPayee())
}

func (m *Manager) UniverseBalance(ctx context.Context, universeID int64, token common.Address) (decimal.Decimal, error) {
	return m.balance(ctx, types.UniversePayee(universeID), token)
}

func (m *Manager) UniverseBalances(ctx context.Context, universeID int64) ([]*types.TokenBalance, error) {
	return m.balances(ctx, types.UniversePayee(universeID))
}

func (m *Manager) UserBalance(ctx context.Context, account common.Address, token common.Address) (decimal.Decimal, error) {
	return m.balance(ctx, types.UserPayee(account), token)
}

func (m *Manager) UserBalances(ctx context.Context, account common.Address) ([]*types.TokenBalance, error) {
	return m.balances(ctx, types.UserPayee(account))
}

func (m *Manager) balance(ctx context.Context, payee types.Payee, token common.Address) (decimal.Decimal, error) {
	balance, err := m.store.Balance(ctx, payee, token)
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return balance, nil
}

func (m *Manager) balances(ctx context.Context, payee types.Payee) ([]*types.TokenBalance, error) {
	balances, err := m.store.Balances(ctx, payee)
	if err != nil {
		return nil, terror.Error(err)
	}
	return balances, nil
}

func payeeURI(payee types.Payee) string {
	switch payee.Kind {
	case types.PayeeKindUniverse:
		return fmt.Sprintf("/ws/universes/%d/earnings", payee.UniverseID)
	case types.PayeeKindUser:
		return fmt.Sprintf("/ws/users/%s/earnings", payee.Account.Hex())
	default:
		return "/ws/protocol/earnings"
	}
}
