package types

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// AssetClassID is a 4 byte tag identifying an asset class, derived from the
// keccak hash of the class name so ids stay stable across deployments.
type AssetClassID [4]byte

func AssetClassFromName(name string) AssetClassID {
	var id AssetClassID
	copy(id[:], crypto.Keccak256([]byte(name))[:4])
	return id
}

func (id AssetClassID) String() string {
	return fmt.Sprintf("0x%x", id[:])
}

func (id AssetClassID) Bytes() []byte {
	return id[:]
}

func AssetClassFromBytes(b []byte) (AssetClassID, error) {
	var id AssetClassID
	if len(b) != len(id) {
		return id, fmt.Errorf("asset class id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Well known asset classes.
var (
	AssetClassERC721  = AssetClassFromName("ERC721")
	AssetClassERC1155 = AssetClassFromName("ERC1155")
)

// AssetID locates an asset within its class. Data holds the class specific
// encoding, for ERC721 the packed (contract address, token id) pair.
type AssetID struct {
	Class AssetClassID `json:"class" db:"class"`
	Data  []byte       `json:"data" db:"data"`
}

func (a AssetID) Equal(b AssetID) bool {
	return a.Class == b.Class && bytes.Equal(a.Data, b.Data)
}

// Asset is the value type passed through listing and renting flows.
// Value is 1 for non fungible tokens.
type Asset struct {
	ID    AssetID         `json:"id"`
	Value decimal.Decimal `json:"value"`
}

func (a Asset) Equal(b Asset) bool {
	return a.ID.Equal(b.ID) && a.Value.Equal(b.Value)
}

// EncodeNFTAssetData packs an ERC721 style locator. The layout mirrors the
// on chain abi encoding: 20 address bytes followed by a 32 byte token id.
func EncodeNFTAssetData(token common.Address, tokenID *big.Int) []byte {
	data := make([]byte, 52)
	copy(data[:20], token.Bytes())
	tokenID.FillBytes(data[20:])
	return data
}

func DecodeNFTAssetData(data []byte) (common.Address, *big.Int, error) {
	if len(data) != 52 {
		return common.Address{}, nil, fmt.Errorf("nft asset data must be 52 bytes, got %d", len(data))
	}
	return common.BytesToAddress(data[:20]), new(big.Int).SetBytes(data[20:]), nil
}

func NewNFTAsset(class AssetClassID, token common.Address, tokenID *big.Int) Asset {
	return Asset{
		ID: AssetID{
			Class: class,
			Data:  EncodeNFTAssetData(token, tokenID),
		},
		Value: decimal.NewFromInt(1),
	}
}

// Token returns the original token contract for NFT encoded assets.
func (a AssetID) Token() (common.Address, error) {
	token, _, err := DecodeNFTAssetData(a.Data)
	return token, err
}
