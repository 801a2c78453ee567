package modules

import (
	"encoding/json"
	"net/http"
	"strings"

	"rfqsettle/services/indexer"
)

const maxEventPage = 500

// IndexModule queries the settlement event index.
type IndexModule struct {
	index *indexer.Indexer
}

func NewIndexModule(index *indexer.Indexer) *IndexModule {
	return &IndexModule{index: index}
}

type listEventsParams struct {
	RFQ   string `json:"rfq,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type feeSummaryParams struct {
	Asset string `json:"asset"`
}

type EventResult struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	RFQ        string            `json:"rfq,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

type FeeSummaryResult struct {
	Asset            string `json:"asset"`
	Fees             string `json:"fees"`
	TreasuryShare    string `json:"treasuryShare"`
	FacilitatorShare string `json:"facilitatorShare"`
	Slashed          string `json:"slashed"`
}

func indexFailure(err error) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
}

func (m *IndexModule) ListEvents(raw json.RawMessage) ([]*EventResult, *ModuleError) {
	if m == nil || m.index == nil {
		return nil, errModuleOffline
	}
	var params listEventsParams
	if len(raw) > 0 {
		if modErr := decodeParams(raw, &params); modErr != nil {
			return nil, modErr
		}
	}
	rfqFilter := ""
	if strings.TrimSpace(params.RFQ) != "" {
		id, modErr := parseAddress("rfq", params.RFQ)
		if modErr != nil {
			return nil, modErr
		}
		rfqFilter = id.Hex()
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative", nil)
	}
	limit := params.Limit
	if limit == 0 || limit > maxEventPage {
		limit = maxEventPage
	}
	records, err := m.index.Events(rfqFilter, limit)
	if err != nil {
		return nil, indexFailure(err)
	}
	out := make([]*EventResult, 0, len(records))
	for _, rec := range records {
		attrs := map[string]string{}
		if rec.Attributes != "" {
			if err := json.Unmarshal([]byte(rec.Attributes), &attrs); err != nil {
				return nil, indexFailure(err)
			}
		}
		out = append(out, &EventResult{
			Seq:        rec.Seq,
			Type:       rec.Type,
			RFQ:        rec.RFQ,
			Attributes: attrs,
			CreatedAt:  rec.CreatedAt.Unix(),
		})
	}
	return out, nil
}

func (m *IndexModule) FeeSummary(raw json.RawMessage) (*FeeSummaryResult, *ModuleError) {
	if m == nil || m.index == nil {
		return nil, errModuleOffline
	}
	var params feeSummaryParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	asset, modErr := parseAddress("asset", params.Asset)
	if modErr != nil {
		return nil, modErr
	}
	totals, err := m.index.FeeSummary(asset)
	if err != nil {
		return nil, indexFailure(err)
	}
	slashed, err := m.index.SlashedTotal(asset)
	if err != nil {
		return nil, indexFailure(err)
	}
	return &FeeSummaryResult{
		Asset:            asset.Hex(),
		Fees:             amountString(totals.Fees),
		TreasuryShare:    amountString(totals.TreasuryShare),
		FacilitatorShare: amountString(totals.FacilitatorShare),
		Slashed:          amountString(slashed),
	}, nil
}
