package state

import (
	"fmt"

	"github.com/holiman/uint256"

	"rfqsettle/core/events"
	"rfqsettle/core/types"
	"rfqsettle/native/rfq"
)

func toAccount(stored *storedAccount) *types.Account {
	return &types.Account{
		ID:      stored.ID,
		Owner:   stored.Owner,
		Asset:   stored.Asset,
		Balance: stored.Balance,
		Frozen:  stored.Frozen,
	}
}

func (v *view) writeAccount(acc *types.Account) error {
	return v.put(accountKey(acc.ID), &storedAccount{
		ID:      acc.ID,
		Owner:   acc.Owner,
		Asset:   acc.Asset,
		Balance: acc.Balance,
		Frozen:  acc.Frozen,
	})
}

func (v *view) AccountGet(id types.Address) (*types.Account, bool, error) {
	var stored storedAccount
	ok, err := v.get(accountKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return toAccount(&stored), true, nil
}

func (v *view) AccountOpen(id, owner, asset types.Address) (*types.Account, error) {
	if id.IsZero() || owner.IsZero() || asset.IsZero() {
		return nil, rfq.ErrInvalidAccount
	}
	acc, ok, err := v.AccountGet(id)
	if err != nil {
		return nil, err
	}
	if ok {
		if acc.Owner != owner {
			return nil, rfq.ErrAccountOwnerMismatch
		}
		if acc.Asset != asset {
			return nil, rfq.ErrAccountAssetMismatch
		}
		return acc, nil
	}
	acc = &types.Account{ID: id, Owner: owner, Asset: asset}
	if err := v.writeAccount(acc); err != nil {
		return nil, err
	}
	if err := v.appendIndex(accountIndexKey(owner), id); err != nil {
		return nil, err
	}
	return acc, nil
}

func (v *view) Transfer(asset, from, to, authority types.Address, amount uint64) error {
	src, ok, err := v.AccountGet(from)
	if err != nil {
		return err
	}
	if !ok {
		return rfq.ErrAccountNotFound
	}
	dst, ok, err := v.AccountGet(to)
	if err != nil {
		return err
	}
	if !ok {
		return rfq.ErrAccountNotFound
	}
	if src.Owner != authority {
		return rfq.ErrAccountOwnerMismatch
	}
	if src.Asset != asset || dst.Asset != asset {
		return rfq.ErrAccountAssetMismatch
	}
	if src.Frozen || dst.Frozen {
		return rfq.ErrAccountFrozen
	}
	if src.Balance < amount {
		return rfq.ErrInsufficientFunds
	}
	if from == to || amount == 0 {
		return nil
	}
	credited, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(dst.Balance), uint256.NewInt(amount))
	if overflow || !credited.IsUint64() {
		return rfq.ErrArithmeticOverflow
	}
	src.Balance -= amount
	dst.Balance = credited.Uint64()
	if err := v.writeAccount(src); err != nil {
		return err
	}
	if err := v.writeAccount(dst); err != nil {
		return err
	}
	v.transfers = append(v.transfers, events.Transfer{
		Asset:     asset,
		From:      from,
		To:        to,
		Authority: authority,
		Amount:    amount,
	})
	return nil
}

// Deposit opens the account when missing and credits amount to it. It backs
// the operator funding surface; the settlement engine never mints balances.
func (m *Manager) Deposit(id, owner, asset types.Address, amount uint64) (*types.Account, error) {
	var out *types.Account
	err := m.Atomic(func(st rfq.State) error {
		v := st.(*view)
		acc, err := v.AccountOpen(id, owner, asset)
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(acc.Balance), uint256.NewInt(amount))
		if overflow || !credited.IsUint64() {
			return rfq.ErrArithmeticOverflow
		}
		acc.Balance = credited.Uint64()
		if err := v.writeAccount(acc); err != nil {
			return err
		}
		out = acc
		return nil
	})
	return out, err
}

// SetFrozen toggles the frozen flag of an existing account.
func (m *Manager) SetFrozen(id types.Address, frozen bool) error {
	return m.Atomic(func(st rfq.State) error {
		v := st.(*view)
		acc, ok, err := v.AccountGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return rfq.ErrAccountNotFound
		}
		acc.Frozen = frozen
		return v.writeAccount(acc)
	})
}

// Account loads a ledger account from committed state.
func (m *Manager) Account(id types.Address) (*types.Account, bool, error) {
	var (
		out *types.Account
		ok  bool
	)
	err := m.View(func(st rfq.State) error {
		var err error
		out, ok, err = st.AccountGet(id)
		return err
	})
	return out, ok, err
}

// AccountsByOwner lists every account opened for owner.
func (m *Manager) AccountsByOwner(owner types.Address) ([]*types.Account, error) {
	var out []*types.Account
	err := m.View(func(st rfq.State) error {
		v := st.(*view)
		ids, err := v.index(accountIndexKey(owner))
		if err != nil {
			return err
		}
		for _, id := range ids {
			acc, ok, err := v.AccountGet(id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("state: indexed account %s missing", id.Hex())
			}
			out = append(out, acc)
		}
		return nil
	})
	return out, err
}
