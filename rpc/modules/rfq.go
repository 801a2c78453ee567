package modules

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/rfq"
)

// QuoteLister enumerates the quotes committed to a request.
type QuoteLister interface {
	QuotesByRFQ(rfqID types.Address) ([]*rfq.Quote, error)
}

// RFQModule exposes the settlement engine over JSON-RPC.
type RFQModule struct {
	engine *rfq.Engine
	quotes QuoteLister
}

// NewRFQModule constructs the settlement RPC module. quotes may be nil, in
// which case rfq_listQuotes is unavailable.
func NewRFQModule(engine *rfq.Engine, quotes QuoteLister) *RFQModule {
	return &RFQModule{engine: engine, quotes: quotes}
}

type createParams struct {
	Maker               string `json:"maker"`
	UUID                string `json:"uuid,omitempty"`
	BaseAsset           string `json:"baseAsset"`
	QuoteAsset          string `json:"quoteAsset"`
	BondAmount          string `json:"bondAmount"`
	BaseAmount          string `json:"baseAmount"`
	MinQuoteAmount      string `json:"minQuoteAmount"`
	FeeAmount           string `json:"feeAmount"`
	FacilitatorFeeBps   uint16 `json:"facilitatorFeeBps"`
	Facilitator         string `json:"facilitator,omitempty"`
	CommitTTL           uint32 `json:"commitTtl"`
	RevealTTL           uint32 `json:"revealTtl"`
	SelectionTTL        uint32 `json:"selectionTtl"`
	FundTTL             uint32 `json:"fundTtl"`
	MakerPaymentAccount string `json:"makerPaymentAccount,omitempty"`
}

type updateParams struct {
	Caller              string  `json:"caller"`
	RFQ                 string  `json:"rfq"`
	BondAmount          *string `json:"bondAmount,omitempty"`
	BaseAmount          *string `json:"baseAmount,omitempty"`
	MinQuoteAmount      *string `json:"minQuoteAmount,omitempty"`
	FeeAmount           *string `json:"feeAmount,omitempty"`
	FacilitatorFeeBps   *uint16 `json:"facilitatorFeeBps,omitempty"`
	CommitTTL           *uint32 `json:"commitTtl,omitempty"`
	RevealTTL           *uint32 `json:"revealTtl,omitempty"`
	SelectionTTL        *uint32 `json:"selectionTtl,omitempty"`
	FundTTL             *uint32 `json:"fundTtl,omitempty"`
	MakerPaymentAccount string  `json:"makerPaymentAccount,omitempty"`
}

type actorParams struct {
	Caller string `json:"caller"`
	RFQ    string `json:"rfq"`
}

type facilitatorParams struct {
	Caller      string `json:"caller"`
	RFQ         string `json:"rfq"`
	Facilitator string `json:"facilitator,omitempty"`
}

type instructionParams struct {
	ProgramID string `json:"programId"`
	Data      string `json:"data"`
}

type commitParams struct {
	Caller         string             `json:"caller"`
	RFQ            string             `json:"rfq"`
	CommitHash     string             `json:"commitHash"`
	LiquidityProof string             `json:"liquidityProof"`
	PaymentAccount string             `json:"paymentAccount,omitempty"`
	Facilitator    string             `json:"facilitator,omitempty"`
	Attestation    *instructionParams `json:"attestation"`
}

type revealParams struct {
	Caller string `json:"caller"`
	RFQ    string `json:"rfq"`
	Salt   string `json:"salt"`
	Amount string `json:"amount"`
}

type selectParams struct {
	Caller            string `json:"caller"`
	RFQ               string `json:"rfq"`
	Quote             string `json:"quote"`
	MakerBaseAccount  string `json:"makerBaseAccount"`
	MakerQuoteAccount string `json:"makerQuoteAccount,omitempty"`
}

type completeParams struct {
	Caller            string `json:"caller"`
	RFQ               string `json:"rfq"`
	TakerBaseAccount  string `json:"takerBaseAccount,omitempty"`
	TakerQuoteAccount string `json:"takerQuoteAccount"`
}

type rfqIDParams struct {
	RFQ string `json:"rfq"`
}

type quoteLookupParams struct {
	Quote string `json:"quote,omitempty"`
	RFQ   string `json:"rfq,omitempty"`
	Taker string `json:"taker,omitempty"`
}

// CancelResult acknowledges a cancelled draft.
type CancelResult struct {
	RFQ       string `json:"rfq"`
	Cancelled bool   `json:"cancelled"`
}

func (m *RFQModule) actor(raw json.RawMessage) (types.Address, types.Address, *ModuleError) {
	var params actorParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return types.ZeroAddress, types.ZeroAddress, modErr
	}
	return parseActor(params.Caller, params.RFQ)
}

func parseActor(callerRaw, rfqRaw string) (types.Address, types.Address, *ModuleError) {
	caller, modErr := parseAddress("caller", callerRaw)
	if modErr != nil {
		return types.ZeroAddress, types.ZeroAddress, modErr
	}
	id, modErr := parseAddress("rfq", rfqRaw)
	if modErr != nil {
		return types.ZeroAddress, types.ZeroAddress, modErr
	}
	return caller, id, nil
}

func (m *RFQModule) Create(raw json.RawMessage) (*RFQResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params createParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	maker, modErr := parseAddress("maker", params.Maker)
	if modErr != nil {
		return nil, modErr
	}
	create := rfq.CreateParams{
		FacilitatorFeeBps: params.FacilitatorFeeBps,
		CommitTTL:         params.CommitTTL,
		RevealTTL:         params.RevealTTL,
		SelectionTTL:      params.SelectionTTL,
		FundTTL:           params.FundTTL,
	}
	if strings.TrimSpace(params.UUID) != "" {
		parsed, err := uuid.Parse(params.UUID)
		if err != nil {
			return nil, invalidParams("invalid uuid", err.Error())
		}
		create.UUID = parsed
	}
	if create.BaseAsset, modErr = parseAddress("baseAsset", params.BaseAsset); modErr != nil {
		return nil, modErr
	}
	if create.QuoteAsset, modErr = parseAddress("quoteAsset", params.QuoteAsset); modErr != nil {
		return nil, modErr
	}
	amounts := []struct {
		field string
		raw   string
		dst   *uint64
	}{
		{"bondAmount", params.BondAmount, &create.BondAmount},
		{"baseAmount", params.BaseAmount, &create.BaseAmount},
		{"minQuoteAmount", params.MinQuoteAmount, &create.MinQuoteAmount},
		{"feeAmount", params.FeeAmount, &create.FeeAmount},
	}
	for _, a := range amounts {
		if *a.dst, modErr = parseAmount(a.field, a.raw); modErr != nil {
			return nil, modErr
		}
	}
	if create.Facilitator, modErr = parseOptionalAddressPtr("facilitator", params.Facilitator); modErr != nil {
		return nil, modErr
	}
	if create.MakerPaymentAccount, modErr = parseOptionalAddress("makerPaymentAccount", params.MakerPaymentAccount); modErr != nil {
		return nil, modErr
	}
	if create.MakerPaymentAccount.IsZero() {
		create.MakerPaymentAccount = rfq.AssociatedAccount(maker, m.engine.Registry().SettlementAsset)
	}
	r, err := m.engine.CreateRFQ(maker, create)
	if err != nil {
		return nil, engineError(err)
	}
	return formatRFQ(r), nil
}

func (m *RFQModule) Update(raw json.RawMessage) (*RFQResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params updateParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, id, modErr := parseActor(params.Caller, params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	update := rfq.UpdateParams{
		FacilitatorFeeBps: params.FacilitatorFeeBps,
		CommitTTL:         params.CommitTTL,
		RevealTTL:         params.RevealTTL,
		SelectionTTL:      params.SelectionTTL,
		FundTTL:           params.FundTTL,
	}
	if update.BondAmount, modErr = parseOptionalAmount("bondAmount", params.BondAmount); modErr != nil {
		return nil, modErr
	}
	if update.BaseAmount, modErr = parseOptionalAmount("baseAmount", params.BaseAmount); modErr != nil {
		return nil, modErr
	}
	if update.MinQuoteAmount, modErr = parseOptionalAmount("minQuoteAmount", params.MinQuoteAmount); modErr != nil {
		return nil, modErr
	}
	if update.FeeAmount, modErr = parseOptionalAmount("feeAmount", params.FeeAmount); modErr != nil {
		return nil, modErr
	}
	if update.MakerPaymentAccount, modErr = parseOptionalAddressPtr("makerPaymentAccount", params.MakerPaymentAccount); modErr != nil {
		return nil, modErr
	}
	r, err := m.engine.UpdateRFQ(caller, id, update)
	if err != nil {
		return nil, engineError(err)
	}
	return formatRFQ(r), nil
}

func (m *RFQModule) Cancel(raw json.RawMessage) (*CancelResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	caller, id, modErr := m.actor(raw)
	if modErr != nil {
		return nil, modErr
	}
	if err := m.engine.CancelRFQ(caller, id); err != nil {
		return nil, engineError(err)
	}
	return &CancelResult{RFQ: id.Hex(), Cancelled: true}, nil
}

// rfqAction runs one of the caller/rfq actions returning the updated request.
func (m *RFQModule) rfqAction(raw json.RawMessage, action func(caller, id types.Address) (*rfq.RFQ, error)) (*RFQResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	caller, id, modErr := m.actor(raw)
	if modErr != nil {
		return nil, modErr
	}
	r, err := action(caller, id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatRFQ(r), nil
}

func (m *RFQModule) Open(raw json.RawMessage) (*RFQResult, *ModuleError) {
	return m.rfqAction(raw, func(caller, id types.Address) (*rfq.RFQ, error) { return m.engine.OpenRFQ(caller, id) })
}

func (m *RFQModule) CloseExpired(raw json.RawMessage) (*RFQResult, *ModuleError) {
	return m.rfqAction(raw, func(caller, id types.Address) (*rfq.RFQ, error) { return m.engine.CloseExpired(caller, id) })
}

func (m *RFQModule) CloseIgnored(raw json.RawMessage) (*RFQResult, *ModuleError) {
	return m.rfqAction(raw, func(caller, id types.Address) (*rfq.RFQ, error) { return m.engine.CloseIgnored(caller, id) })
}

func (m *RFQModule) CloseIncomplete(raw json.RawMessage) (*RFQResult, *ModuleError) {
	return m.rfqAction(raw, func(caller, id types.Address) (*rfq.RFQ, error) { return m.engine.CloseIncomplete(caller, id) })
}

func parseFacilitatorUpdate(raw string) (rfq.FacilitatorUpdate, *ModuleError) {
	if strings.TrimSpace(raw) == "" {
		return rfq.ClearFacilitator(), nil
	}
	addr, modErr := parseAddress("facilitator", raw)
	if modErr != nil {
		return rfq.FacilitatorUpdate{}, modErr
	}
	return rfq.SetFacilitator(addr), nil
}

func (m *RFQModule) SetFacilitator(raw json.RawMessage) (*RFQResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params facilitatorParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, id, modErr := parseActor(params.Caller, params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	update, modErr := parseFacilitatorUpdate(params.Facilitator)
	if modErr != nil {
		return nil, modErr
	}
	r, err := m.engine.SetRFQFacilitator(caller, id, update)
	if err != nil {
		return nil, engineError(err)
	}
	return formatRFQ(r), nil
}

func (m *RFQModule) CommitQuote(raw json.RawMessage) (*QuoteResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params commitParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	taker, id, modErr := parseActor(params.Caller, params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	var commit rfq.CommitParams
	hash, modErr := parseHex("commitHash", params.CommitHash, rfq.CommitHashLength)
	if modErr != nil {
		return nil, modErr
	}
	copy(commit.CommitHash[:], hash)
	proof, modErr := parseHex("liquidityProof", params.LiquidityProof, rfq.LiquidityProofLength)
	if modErr != nil {
		return nil, modErr
	}
	copy(commit.LiquidityProof[:], proof)
	if commit.PaymentAccount, modErr = parseOptionalAddress("paymentAccount", params.PaymentAccount); modErr != nil {
		return nil, modErr
	}
	if commit.PaymentAccount.IsZero() {
		commit.PaymentAccount = rfq.AssociatedAccount(taker, m.engine.Registry().SettlementAsset)
	}
	if commit.Facilitator, modErr = parseOptionalAddressPtr("facilitator", params.Facilitator); modErr != nil {
		return nil, modErr
	}
	if params.Attestation != nil {
		ix := &crypto.Instruction{}
		if ix.ProgramID, modErr = parseAddress("attestation.programId", params.Attestation.ProgramID); modErr != nil {
			return nil, modErr
		}
		if ix.Data, modErr = parseHex("attestation.data", params.Attestation.Data, 0); modErr != nil {
			return nil, modErr
		}
		commit.Attestation = ix
	}
	q, err := m.engine.CommitQuote(taker, id, commit)
	if err != nil {
		return nil, engineError(err)
	}
	return formatQuote(q), nil
}

func (m *RFQModule) SetQuoteFacilitator(raw json.RawMessage) (*QuoteResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params facilitatorParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	taker, id, modErr := parseActor(params.Caller, params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	update, modErr := parseFacilitatorUpdate(params.Facilitator)
	if modErr != nil {
		return nil, modErr
	}
	q, err := m.engine.SetQuoteFacilitator(taker, id, update)
	if err != nil {
		return nil, engineError(err)
	}
	return formatQuote(q), nil
}

func (m *RFQModule) RevealQuote(raw json.RawMessage) (*QuoteResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params revealParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	taker, id, modErr := parseActor(params.Caller, params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	saltBytes, modErr := parseHex("salt", params.Salt, rfq.SaltLength)
	if modErr != nil {
		return nil, modErr
	}
	var salt [rfq.SaltLength]byte
	copy(salt[:], saltBytes)
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	q, err := m.engine.RevealQuote(taker, id, salt, amount)
	if err != nil {
		return nil, engineError(err)
	}
	return formatQuote(q), nil
}

func (m *RFQModule) SelectQuote(raw json.RawMessage) (*SettlementResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params selectParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, id, modErr := parseActor(params.Caller, params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	quoteID, modErr := parseAddress("quote", params.Quote)
	if modErr != nil {
		return nil, modErr
	}
	var accounts rfq.SelectAccounts
	if accounts.MakerBaseAccount, modErr = parseAddress("makerBaseAccount", params.MakerBaseAccount); modErr != nil {
		return nil, modErr
	}
	if accounts.MakerQuoteAccount, modErr = parseOptionalAddress("makerQuoteAccount", params.MakerQuoteAccount); modErr != nil {
		return nil, modErr
	}
	s, err := m.engine.SelectQuote(caller, id, quoteID, accounts)
	if err != nil {
		return nil, engineError(err)
	}
	return formatSettlement(s), nil
}

func (m *RFQModule) CompleteSettlement(raw json.RawMessage) (*SettlementResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params completeParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, id, modErr := parseActor(params.Caller, params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	var accounts rfq.CompleteAccounts
	if accounts.TakerBaseAccount, modErr = parseOptionalAddress("takerBaseAccount", params.TakerBaseAccount); modErr != nil {
		return nil, modErr
	}
	if accounts.TakerQuoteAccount, modErr = parseAddress("takerQuoteAccount", params.TakerQuoteAccount); modErr != nil {
		return nil, modErr
	}
	s, err := m.engine.CompleteSettlement(caller, id, accounts)
	if err != nil {
		return nil, engineError(err)
	}
	return formatSettlement(s), nil
}

func (m *RFQModule) RefundQuoteBonds(raw json.RawMessage) (*QuoteResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	taker, id, modErr := m.actor(raw)
	if modErr != nil {
		return nil, modErr
	}
	q, err := m.engine.RefundQuoteBonds(taker, id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatQuote(q), nil
}

func (m *RFQModule) WithdrawFacilitatorReward(raw json.RawMessage) (*RewardResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	caller, id, modErr := m.actor(raw)
	if modErr != nil {
		return nil, modErr
	}
	t, err := m.engine.WithdrawFacilitatorReward(caller, id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatReward(t), nil
}

func (m *RFQModule) rfqID(raw json.RawMessage) (types.Address, *ModuleError) {
	var params rfqIDParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return types.ZeroAddress, modErr
	}
	return parseAddress("rfq", params.RFQ)
}

func (m *RFQModule) Get(raw json.RawMessage) (*RFQResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	id, modErr := m.rfqID(raw)
	if modErr != nil {
		return nil, modErr
	}
	r, err := m.engine.RFQ(id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatRFQ(r), nil
}

// GetQuote looks a quote up by id or by (rfq, taker).
func (m *RFQModule) GetQuote(raw json.RawMessage) (*QuoteResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	var params quoteLookupParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	var id types.Address
	var modErr *ModuleError
	if strings.TrimSpace(params.Quote) != "" {
		id, modErr = parseAddress("quote", params.Quote)
	} else {
		var rfqID, taker types.Address
		if rfqID, modErr = parseAddress("rfq", params.RFQ); modErr == nil {
			taker, modErr = parseAddress("taker", params.Taker)
		}
		id = rfq.QuoteID(rfqID, taker)
	}
	if modErr != nil {
		return nil, modErr
	}
	q, err := m.engine.Quote(id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatQuote(q), nil
}

func (m *RFQModule) ListQuotes(raw json.RawMessage) ([]*QuoteResult, *ModuleError) {
	if m == nil || m.engine == nil || m.quotes == nil {
		return nil, errModuleOffline
	}
	id, modErr := m.rfqID(raw)
	if modErr != nil {
		return nil, modErr
	}
	if _, err := m.engine.RFQ(id); err != nil {
		return nil, engineError(err)
	}
	quotes, err := m.quotes.QuotesByRFQ(id)
	if err != nil {
		return nil, engineError(err)
	}
	out := make([]*QuoteResult, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, formatQuote(q))
	}
	return out, nil
}

func (m *RFQModule) GetSettlement(raw json.RawMessage) (*SettlementResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	id, modErr := m.rfqID(raw)
	if modErr != nil {
		return nil, modErr
	}
	s, err := m.engine.Settlement(id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatSettlement(s), nil
}

func (m *RFQModule) GetDeadlines(raw json.RawMessage) (*rfq.Deadlines, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	id, modErr := m.rfqID(raw)
	if modErr != nil {
		return nil, modErr
	}
	d, err := m.engine.Deadlines(id)
	if err != nil {
		return nil, engineError(err)
	}
	return &d, nil
}

func (m *RFQModule) GetSlashedBonds(raw json.RawMessage) (*SlashedBondsResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	id, modErr := m.rfqID(raw)
	if modErr != nil {
		return nil, modErr
	}
	t, err := m.engine.SlashedBonds(id)
	if err != nil {
		return nil, engineError(err)
	}
	return formatSlashed(t), nil
}

// GetFees returns the fee split of a settled request, or nil before
// settlement.
func (m *RFQModule) GetFees(raw json.RawMessage) (*FeesResult, *ModuleError) {
	if m == nil || m.engine == nil {
		return nil, errModuleOffline
	}
	id, modErr := m.rfqID(raw)
	if modErr != nil {
		return nil, modErr
	}
	t, ok, err := m.engine.Fees(id)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, nil
	}
	return formatFees(t), nil
}
