// Package tokens issues and verifies the bearer tokens the API uses to
// establish the calling account.
package tokens

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt"
	"github.com/ninja-software/terror/v2"
)

type Issuer struct {
	key     []byte
	expires time.Duration
}

func NewIssuer(key []byte, expirationDays int) *Issuer {
	return &Issuer{
		key:     key,
		expires: time.Duration(expirationDays) * 24 * time.Hour,
	}
}

// Claims binds a token to one account address.
type Claims struct {
	Account string `json:"account"`
	jwt.StandardClaims
}

// Issue mints a signed token for the account.
func (i *Issuer) Issue(account common.Address) (string, error) {
	now := time.Now()
	claims := &Claims{
		Account: account.Hex(),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(i.expires).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", terror.Error(err, "could not sign token")
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the account the
// token was issued for.
func (i *Issuer) Verify(tokenString string) (common.Address, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	})
	if err != nil {
		return common.Address{}, terror.Error(err, "invalid token")
	}
	if !token.Valid {
		return common.Address{}, terror.Error(fmt.Errorf("token is not valid"), "invalid token")
	}
	if !common.IsHexAddress(claims.Account) {
		return common.Address{}, terror.Error(fmt.Errorf("token account %q is not an address", claims.Account), "invalid token")
	}
	return common.HexToAddress(claims.Account), nil
}
