package modules

import (
	"encoding/json"
	"errors"
	"net/http"

	"rfqsettle/native/rfq"
	"rfqsettle/services/attestor"
)

// AttestModule signs liquidity attestations for sealed quotes using the
// terms of the referenced request.
type AttestModule struct {
	engine   *rfq.Engine
	attestor *attestor.Attestor
}

func NewAttestModule(engine *rfq.Engine, a *attestor.Attestor) *AttestModule {
	return &AttestModule{engine: engine, attestor: a}
}

type attestParams struct {
	RFQ              string `json:"rfq"`
	Taker            string `json:"taker"`
	Amount           string `json:"amount"`
	Salt             string `json:"salt"`
	LiquidityAccount string `json:"liquidityAccount,omitempty"`
}

// AttestResult carries everything rfq_commitQuote needs.
type AttestResult struct {
	CommitHash     string             `json:"commitHash"`
	LiquidityProof string             `json:"liquidityProof"`
	Attestation    AttestationPayload `json:"attestation"`
	Attestor       string             `json:"attestor"`
}

type AttestationPayload struct {
	ProgramID string `json:"programId"`
	Data      string `json:"data"`
}

func (m *AttestModule) Liquidity(raw json.RawMessage) (*AttestResult, *ModuleError) {
	if m == nil || m.engine == nil || m.attestor == nil {
		return nil, errModuleOffline
	}
	var params attestParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	id, modErr := parseAddress("rfq", params.RFQ)
	if modErr != nil {
		return nil, modErr
	}
	taker, modErr := parseAddress("taker", params.Taker)
	if modErr != nil {
		return nil, modErr
	}
	amount, modErr := parseAmount("amount", params.Amount)
	if modErr != nil {
		return nil, modErr
	}
	saltBytes, modErr := parseHex("salt", params.Salt, rfq.SaltLength)
	if modErr != nil {
		return nil, modErr
	}
	liquidity, modErr := parseOptionalAddress("liquidityAccount", params.LiquidityAccount)
	if modErr != nil {
		return nil, modErr
	}
	r, err := m.engine.RFQ(id)
	if err != nil {
		return nil, engineError(err)
	}
	req := attestor.Request{
		RFQ:              id,
		Taker:            taker,
		QuoteAsset:       r.QuoteAsset,
		Amount:           amount,
		BondAmount:       r.BondAmount,
		FeeAmount:        r.FeeAmount,
		LiquidityAccount: liquidity,
	}
	copy(req.Salt[:], saltBytes)
	att, err := m.attestor.Attest(req)
	if err != nil {
		return nil, attestError(err)
	}
	return &AttestResult{
		CommitHash:     formatHex(att.CommitHash[:]),
		LiquidityProof: formatHex(att.LiquidityProof[:]),
		Attestation: AttestationPayload{
			ProgramID: att.Instruction.ProgramID.Hex(),
			Data:      formatHex(att.Instruction.Data),
		},
		Attestor: m.attestor.Address().Hex(),
	}, nil
}

func attestError(err error) *ModuleError {
	switch {
	case errors.Is(err, attestor.ErrNoKey):
		return errModuleOffline
	case errors.Is(err, attestor.ErrLiquidityAccount):
		return &ModuleError{HTTPStatus: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, attestor.ErrLiquidityOwner), errors.Is(err, attestor.ErrLiquidityAsset):
		return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: CodeVerification, Message: err.Error()}
	case errors.Is(err, attestor.ErrInsufficientLiquidity):
		return &ModuleError{HTTPStatus: http.StatusUnprocessableEntity, Code: CodeTransfer, Message: err.Error()}
	}
	return engineError(err)
}
