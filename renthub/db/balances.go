package db

import (
	"context"

	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// Balance rows are keyed by (kind, universe_id, account, token). The
// unused key parts hold their zero value so the unique index works for
// every payee kind.

func payeeArgs(payee types.Payee) (string, int64, []byte) {
	return string(payee.Kind), payee.UniverseID, payee.Account.Bytes()
}

func (s *Store) AddBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error {
	q := `--sql
		INSERT INTO balances (kind, universe_id, account, token, amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, universe_id, account, token)
		DO UPDATE SET amount = balances.amount + excluded.amount
	`
	kind, universeID, account := payeeArgs(payee)
	_, err := s.db.ExecContext(ctx, q, kind, universeID, account, token.Bytes(), amount)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

func (s *Store) SubBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error {
	q := `--sql
		UPDATE balances
		SET amount = amount - $5
		WHERE kind = $1 AND universe_id = $2 AND account = $3 AND token = $4
		AND amount >= $5
	`
	kind, universeID, account := payeeArgs(payee)
	result, err := s.db.ExecContext(ctx, q, kind, universeID, account, token.Bytes(), amount)
	if err != nil {
		return terror.Error(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return terror.Error(err)
	}
	if affected == 0 {
		balance, err := s.Balance(ctx, payee, token)
		if err != nil {
			return terror.Error(err)
		}
		return terror.Error(&types.InsufficientBalanceError{Balance: balance}, "insufficient balance")
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, payee types.Payee, token common.Address) (decimal.Decimal, error) {
	q := `--sql
		SELECT coalesce(sum(amount), 0)
		FROM balances
		WHERE kind = $1 AND universe_id = $2 AND account = $3 AND token = $4
	`
	kind, universeID, account := payeeArgs(payee)
	balance := decimal.Zero
	err := s.db.QueryRowContext(ctx, q, kind, universeID, account, token.Bytes()).Scan(&balance)
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return balance, nil
}

func (s *Store) Balances(ctx context.Context, payee types.Payee) ([]*types.TokenBalance, error) {
	q := `--sql
		SELECT token, amount
		FROM balances
		WHERE kind = $1 AND universe_id = $2 AND account = $3 AND amount != 0
		ORDER BY token
	`
	kind, universeID, account := payeeArgs(payee)
	rows, err := s.db.QueryContext(ctx, q, kind, universeID, account)
	if err != nil {
		return nil, terror.Error(err)
	}
	defer rows.Close()

	balances := []*types.TokenBalance{}
	for rows.Next() {
		entry := &types.TokenBalance{}
		var token []byte
		err = rows.Scan(&token, &entry.Amount)
		if err != nil {
			return nil, terror.Error(err)
		}
		entry.Token = common.BytesToAddress(token)
		balances = append(balances, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, terror.Error(err)
	}
	return balances, nil
}
