package rfq

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rfqsettle/core/types"
)

var (
	rfqIDPrefix        = []byte("rfq")
	quoteIDPrefix      = []byte("quote")
	settlementIDPrefix = []byte("settlement")
	bondsVaultPrefix   = []byte("rfq/vault/bonds")
	baseVaultPrefix    = []byte("rfq/vault/base")
	associatedPrefix   = []byte("rfq/associated")
)

// CustodyAuthority owns every escrow vault. Only the engine transfers out of
// accounts owned by it.
var CustodyAuthority = types.BytesToAddress(ethcrypto.Keccak256([]byte("rfq/custody")))

func deriveID(prefix []byte, parts ...[]byte) types.Address {
	chunks := make([][]byte, 0, len(parts)+1)
	chunks = append(chunks, prefix)
	chunks = append(chunks, parts...)
	return types.BytesToAddress(ethcrypto.Keccak256(chunks...))
}

// RFQID derives the identifier of the RFQ created by maker with uuid.
func RFQID(maker types.Address, uuid [16]byte) types.Address {
	return deriveID(rfqIDPrefix, maker[:], uuid[:])
}

// QuoteID derives the identifier of taker's quote on rfqID.
func QuoteID(rfqID, taker types.Address) types.Address {
	return deriveID(quoteIDPrefix, rfqID[:], taker[:])
}

// SettlementID derives the identifier of the settlement record of rfqID.
func SettlementID(rfqID types.Address) types.Address {
	return deriveID(settlementIDPrefix, rfqID[:])
}

// BondsVault is the escrow account holding bonds and retained fees of rfqID.
func BondsVault(rfqID types.Address) types.Address {
	return deriveID(bondsVaultPrefix, rfqID[:])
}

// BaseVault is the escrow account holding the maker's base asset after
// selection.
func BaseVault(rfqID types.Address) types.Address {
	return deriveID(baseVaultPrefix, rfqID[:])
}

// AssociatedAccount is the canonical account of owner for asset. The
// treasury receives slashed bonds and fees through it.
func AssociatedAccount(owner, asset types.Address) types.Address {
	return deriveID(associatedPrefix, owner[:], asset[:])
}
