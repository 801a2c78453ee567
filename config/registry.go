package config

import (
	"fmt"
	"strings"

	"rfqsettle/core/types"
	"rfqsettle/native/rfq"
)

// Parse converts the file representation into the engine registry.
func (r Registry) Parse() (rfq.Registry, error) {
	var out rfq.Registry
	fields := []struct {
		name string
		raw  string
		dst  *types.Address
	}{
		{"registry.Admin", r.Admin, &out.Admin},
		{"registry.SettlementAsset", r.SettlementAsset, &out.SettlementAsset},
		{"registry.TreasuryOwner", r.TreasuryOwner, &out.TreasuryOwner},
		{"registry.AttestationKey", r.AttestationKey, &out.AttestationKey},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.raw) == "" {
			return out, fmt.Errorf("%s is required", field.name)
		}
		addr, err := types.ParseAddress(field.raw)
		if err != nil {
			return out, fmt.Errorf("invalid %s: %w", field.name, err)
		}
		*field.dst = addr
	}
	out.MaxFacilitatorBps = r.MaxFacilitatorBps
	return out, nil
}
