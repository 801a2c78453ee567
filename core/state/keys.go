package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rfqsettle/core/types"
)

var (
	rfqPrefix          = []byte("rfq/record/")
	quotePrefix        = []byte("rfq/quote/")
	quoteIndexPrefix   = []byte("rfq/quotes-by-rfq/")
	guardPrefix        = []byte("rfq/commit-guard/")
	settlementPrefix   = []byte("rfq/settlement/")
	slashedPrefix      = []byte("rfq/slashed-bonds/")
	rewardPrefix       = []byte("rfq/facilitator-reward/")
	feesPrefix         = []byte("rfq/fees/")
	accountPrefix      = []byte("ledger/account/")
	accountIndexPrefix = []byte("ledger/accounts-by-owner/")
)

// Every key is keccak256(prefix || parts...) so record keys have a fixed
// width regardless of the identifier layout.
func hashedKey(prefix []byte, parts ...[]byte) []byte {
	chunks := make([][]byte, 0, len(parts)+1)
	chunks = append(chunks, prefix)
	chunks = append(chunks, parts...)
	return ethcrypto.Keccak256(chunks...)
}

func rfqKey(id types.Address) []byte { return hashedKey(rfqPrefix, id[:]) }

func quoteKey(id types.Address) []byte { return hashedKey(quotePrefix, id[:]) }

func quoteIndexKey(rfqID types.Address) []byte { return hashedKey(quoteIndexPrefix, rfqID[:]) }

func guardKey(hash [32]byte) []byte { return hashedKey(guardPrefix, hash[:]) }

func settlementKey(id types.Address) []byte { return hashedKey(settlementPrefix, id[:]) }

func slashedKey(rfqID types.Address) []byte { return hashedKey(slashedPrefix, rfqID[:]) }

func rewardKey(rfqID, facilitator types.Address) []byte {
	return hashedKey(rewardPrefix, rfqID[:], facilitator[:])
}

func feesKey(rfqID types.Address) []byte { return hashedKey(feesPrefix, rfqID[:]) }

func accountKey(id types.Address) []byte { return hashedKey(accountPrefix, id[:]) }

func accountIndexKey(owner types.Address) []byte { return hashedKey(accountIndexPrefix, owner[:]) }
