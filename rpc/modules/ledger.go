package modules

import (
	"encoding/json"
	"net/http"

	"rfqsettle/core/types"
	"rfqsettle/native/rfq"
)

// Ledger is the account surface backing the ledger module.
type Ledger interface {
	Account(id types.Address) (*types.Account, bool, error)
	AccountsByOwner(owner types.Address) ([]*types.Account, error)
	Deposit(id, owner, asset types.Address, amount uint64) (*types.Account, error)
	SetFrozen(id types.Address, frozen bool) error
}

// LedgerModule serves account queries and, when enabled, operator funding.
type LedgerModule struct {
	ledger Ledger
	admin  bool
}

func NewLedgerModule(ledger Ledger, enableAdmin bool) *LedgerModule {
	return &LedgerModule{ledger: ledger, admin: enableAdmin}
}

var errAdminDisabled = &ModuleError{HTTPStatus: http.StatusForbidden, Code: CodeForbidden, Message: "ledger administration disabled"}

type accountParams struct {
	Account string `json:"account,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Asset   string `json:"asset,omitempty"`
}

type depositParams struct {
	Account string `json:"account,omitempty"`
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
}

type freezeParams struct {
	Account string `json:"account"`
	Frozen  bool   `json:"frozen"`
}

// GetAccount resolves an account by id or by (owner, asset).
func (m *LedgerModule) GetAccount(raw json.RawMessage) (*AccountResult, *ModuleError) {
	if m == nil || m.ledger == nil {
		return nil, errModuleOffline
	}
	var params accountParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	id, modErr := parseOptionalAddress("account", params.Account)
	if modErr != nil {
		return nil, modErr
	}
	if id.IsZero() {
		owner, modErr := parseAddress("owner", params.Owner)
		if modErr != nil {
			return nil, modErr
		}
		asset, modErr := parseAddress("asset", params.Asset)
		if modErr != nil {
			return nil, modErr
		}
		id = rfq.AssociatedAccount(owner, asset)
	}
	acc, ok, err := m.ledger.Account(id)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, engineError(rfq.ErrAccountNotFound)
	}
	return formatAccount(acc), nil
}

func (m *LedgerModule) ListAccounts(raw json.RawMessage) ([]*AccountResult, *ModuleError) {
	if m == nil || m.ledger == nil {
		return nil, errModuleOffline
	}
	var params accountParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	owner, modErr := parseAddress("owner", params.Owner)
	if modErr != nil {
		return nil, modErr
	}
	accounts, err := m.ledger.AccountsByOwner(owner)
	if err != nil {
		return nil, engineError(err)
	}
	out := make([]*AccountResult, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, formatAccount(acc))
	}
	return out, nil
}

// Deposit credits an account, opening the owner's associated account for
// the asset when no id is given.
func (m *LedgerModule) Deposit(raw json.RawMessage) (*AccountResult, *ModuleError) {
	if m == nil || m.ledger == nil {
		return nil, errModuleOffline
	}
	if !m.admin {
		return nil, errAdminDisabled
	}
	var params depositParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	owner, modErr := parseAddress("owner", params.Owner)
	if modErr != nil {
		return nil, modErr
	}
	asset, modErr := parseAddress("asset", params.Asset)
	if modErr != nil {
		return nil, modErr
	}
	id, modErr := parseOptionalAddress("account", params.Account)
	if modErr != nil {
		return nil, modErr
	}
	if id.IsZero() {
		id = rfq.AssociatedAccount(owner, asset)
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	acc, err := m.ledger.Deposit(id, owner, asset, amount)
	if err != nil {
		return nil, engineError(err)
	}
	return formatAccount(acc), nil
}

func (m *LedgerModule) SetFrozen(raw json.RawMessage) (*AccountResult, *ModuleError) {
	if m == nil || m.ledger == nil {
		return nil, errModuleOffline
	}
	if !m.admin {
		return nil, errAdminDisabled
	}
	var params freezeParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	id, modErr := parseAddress("account", params.Account)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.ledger.SetFrozen(id, params.Frozen); err != nil {
		return nil, engineError(err)
	}
	acc, _, err := m.ledger.Account(id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatAccount(acc), nil
}
