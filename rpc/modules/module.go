package modules

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"rfqsettle/core/types"
	"rfqsettle/native/rfq"
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
)

// Settlement error codes, one per rfq error kind.
const (
	CodeNotFound     = -32004
	CodeState        = -32010
	CodeTiming       = -32011
	CodeForbidden    = -32012
	CodeVerification = -32013
	CodeArithmetic   = -32014
	CodeConflict     = -32015
	CodeTransfer     = -32016
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

var errModuleOffline = &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeServerError, Message: "module unavailable"}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

// engineError maps a settlement engine failure to its JSON-RPC error. The
// error kind is exposed as data so clients can branch without parsing text.
func engineError(err error) *ModuleError {
	var rfqErr *rfq.Error
	if !errors.As(err, &rfqErr) {
		return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: err.Error()}
	}
	kind := rfqErr.Kind()
	status, code := http.StatusBadRequest, codeServerError
	switch kind {
	case rfq.KindInvalidParams:
		code = codeInvalidParams
	case rfq.KindNotFound:
		status, code = http.StatusNotFound, CodeNotFound
	case rfq.KindState:
		status, code = http.StatusConflict, CodeState
	case rfq.KindTiming:
		status, code = http.StatusConflict, CodeTiming
	case rfq.KindAuthorization:
		status, code = http.StatusForbidden, CodeForbidden
	case rfq.KindVerification:
		code = CodeVerification
	case rfq.KindArithmetic:
		status, code = http.StatusUnprocessableEntity, CodeArithmetic
	case rfq.KindUniqueness:
		status, code = http.StatusConflict, CodeConflict
	case rfq.KindTransfer:
		status, code = http.StatusUnprocessableEntity, CodeTransfer
	default:
		status = http.StatusInternalServerError
	}
	return &ModuleError{HTTPStatus: status, Code: code, Message: err.Error(), Data: map[string]string{"kind": kind.String()}}
}

func decodeParams(raw json.RawMessage, out interface{}) *ModuleError {
	if len(raw) == 0 {
		return invalidParams("parameter object required", nil)
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, value string) (types.Address, *ModuleError) {
	if strings.TrimSpace(value) == "" {
		return types.ZeroAddress, invalidParams(field+" is required", nil)
	}
	addr, err := types.ParseAddress(value)
	if err != nil {
		return types.ZeroAddress, invalidParams("invalid "+field, err.Error())
	}
	return addr, nil
}

// parseOptionalAddress returns the zero address for an empty value.
func parseOptionalAddress(field, value string) (types.Address, *ModuleError) {
	if strings.TrimSpace(value) == "" {
		return types.ZeroAddress, nil
	}
	return parseAddress(field, value)
}

func parseOptionalAddressPtr(field, value string) (*types.Address, *ModuleError) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	addr, modErr := parseAddress(field, value)
	if modErr != nil {
		return nil, modErr
	}
	return &addr, nil
}

// parseAmount decodes a base-10 amount string.
func parseAmount(field, value string) (uint64, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, invalidParams(field+" is required", nil)
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, invalidParams("invalid "+field, err.Error())
	}
	return amount, nil
}

func parseOptionalAmount(field string, value *string) (*uint64, *ModuleError) {
	if value == nil {
		return nil, nil
	}
	amount, modErr := parseAmount(field, *value)
	if modErr != nil {
		return nil, modErr
	}
	return &amount, nil
}

func parseHex(field, value string, size int) ([]byte, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, invalidParams("invalid "+field, err.Error())
	}
	if size > 0 && len(decoded) != size {
		return nil, invalidParams(fmt.Sprintf("%s must be %d bytes", field, size), nil)
	}
	return decoded, nil
}

func formatHex(b []byte) string { return "0x" + hex.EncodeToString(b) }
