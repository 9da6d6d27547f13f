package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"renthub-services/renthub/rentlog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

type ErrorMessage string

const (
	Unauthorised          ErrorMessage = "Unauthorised - Please log in or contact System Administrator"
	Forbidden             ErrorMessage = "Forbidden - You do not have permissions for this, please contact System Administrator"
	InternalErrorTryAgain ErrorMessage = "Internal Error - Please try again in a few minutes or Contact Support"
	InputError            ErrorMessage = "Input Error - Please try again"
)

func (errMsg ErrorMessage) String() string {
	return string(errMsg)
}

// ErrorObject is the JSON error envelope every handler failure returns.
type ErrorObject struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error_code"`
}

// WithError handles error responses.
func WithError(next func(w http.ResponseWriter, r *http.Request) (int, error)) http.HandlerFunc {
	fn := func(w http.ResponseWriter, r *http.Request) {
		code, err := next(w, r)
		if err == nil {
			return
		}

		errObj := &ErrorObject{
			Message:   err.Error(),
			ErrorCode: fmt.Sprintf("%d", code),
		}
		var bErr *terror.TError
		if errors.As(err, &bErr) {
			errObj.Message = bErr.Message

			switch bErr.Level {
			case terror.ErrLevelWarn:
				rentlog.L.Warn().Err(err).Str("path", r.URL.Path).Msg("rest error")
			default:
				rentlog.L.Err(err).Str("path", r.URL.Path).Msg("rest error")
			}

			// fall back to the generic message when no friendly one was set
			if bErr.Error() == bErr.Message {
				switch code {
				case http.StatusInternalServerError:
					errObj.Message = InternalErrorTryAgain.String()
				case http.StatusForbidden:
					errObj.Message = Forbidden.String()
				case http.StatusUnauthorized:
					errObj.Message = Unauthorised.String()
				case http.StatusBadRequest:
					errObj.Message = InputError.String()
				}
			}
		} else {
			rentlog.L.Err(err).Str("path", r.URL.Path).Msg("rest error")
		}

		jsonErr, err := json.Marshal(errObj)
		if err != nil {
			http.Error(w, `{"message":"JSON failed, please contact IT.","error_code":"00001"}`, code)
			return
		}
		http.Error(w, string(jsonErr), code)
	}
	return fn
}

// WithAccount resolves the bearer token to the calling account.
func WithAccount(api *API, next func(w http.ResponseWriter, r *http.Request, account common.Address) (int, error)) func(w http.ResponseWriter, r *http.Request) (int, error) {
	fn := func(w http.ResponseWriter, r *http.Request) (int, error) {
		tokenStr := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tokenStr == "" {
			tokenStr = r.URL.Query().Get("token")
		}
		if tokenStr == "" {
			return http.StatusUnauthorized, terror.Error(fmt.Errorf("no token provided"), "Error - Please log in")
		}
		account, err := api.Tokens.Verify(tokenStr)
		if err != nil {
			return http.StatusUnauthorized, terror.Error(err, "Error - Please log in")
		}
		return next(w, r, account)
	}
	return fn
}

func writeJSON(w http.ResponseWriter, payload interface{}) (int, error) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		return http.StatusInternalServerError, terror.Error(err, "could not encode response")
	}
	return http.StatusOK, nil
}
