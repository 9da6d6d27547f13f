package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// WithdrawRequest debits a ledger balance and pays it out on chain.
type WithdrawRequest struct {
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (req *WithdrawRequest) parse() (common.Address, decimal.Decimal, common.Address, error) {
	if !common.IsHexAddress(req.Token) {
		return common.Address{}, decimal.Zero, common.Address{}, terror.Error(fmt.Errorf("invalid token %q", req.Token), "invalid token address")
	}
	if !common.IsHexAddress(req.Recipient) {
		return common.Address{}, decimal.Zero, common.Address{}, terror.Error(fmt.Errorf("invalid recipient %q", req.Recipient), "invalid recipient address")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return common.Address{}, decimal.Zero, common.Address{}, terror.Error(err, "invalid amount")
	}
	return common.HexToAddress(req.Token), amount, common.HexToAddress(req.Recipient), nil
}

func decodeWithdraw(r *http.Request) (common.Address, decimal.Decimal, common.Address, error) {
	req := &WithdrawRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return common.Address{}, decimal.Zero, common.Address{}, terror.Error(err, "invalid request body")
	}
	return req.parse()
}

func (api *API) UserBalances(w http.ResponseWriter, r *http.Request) (int, error) {
	account, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	balances, err := api.Payments.UserBalances(r.Context(), account)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, balances)
}

func (api *API) UserFundsWithdraw(w http.ResponseWriter, r *http.Request, caller common.Address) (int, error) {
	account, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	token, amount, recipient, err := decodeWithdraw(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Payments.WithdrawUserFunds(r.Context(), caller, account, token, amount, recipient)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) UniverseBalances(w http.ResponseWriter, r *http.Request) (int, error) {
	universeID, err := int64Param(r, "universe_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	balances, err := api.Payments.UniverseBalances(r.Context(), universeID)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, balances)
}

func (api *API) UniverseFundsWithdraw(w http.ResponseWriter, r *http.Request, caller common.Address) (int, error) {
	universeID, err := int64Param(r, "universe_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	token, amount, recipient, err := decodeWithdraw(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Payments.WithdrawUniverseFunds(r.Context(), caller, universeID, token, amount, recipient)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) ProtocolBalances(w http.ResponseWriter, r *http.Request) (int, error) {
	balances, err := api.Payments.ProtocolBalances(r.Context())
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, balances)
}

func (api *API) ProtocolFundsWithdraw(w http.ResponseWriter, r *http.Request, caller common.Address) (int, error) {
	token, amount, recipient, err := decodeWithdraw(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Payments.WithdrawProtocolFunds(r.Context(), caller, token, amount, recipient)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}
