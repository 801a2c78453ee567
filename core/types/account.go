package types

// Account is a single-asset balance held in the ledger. Payment accounts are
// owned by participants; escrow vaults are owned by the settlement custody
// authority and can only be debited by the engine.
type Account struct {
	ID      Address `json:"id"`
	Owner   Address `json:"owner"`
	Asset   Address `json:"asset"`
	Balance uint64  `json:"balance"`
	Frozen  bool    `json:"frozen"`
}

// Clone returns a copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
