package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"crucible/native/exchange"
	"crucible/observability/logging"
)

// adminMethods are the governance operations. Access control is positional:
// the daemon serves them on a loopback-only listener.
var adminMethods = map[string]handlerFunc{
	"exchange_addCollateral":      (*Server).addCollateral,
	"exchange_revokeCollateral":   (*Server).revokeCollateral,
	"exchange_setFees":            (*Server).setFees,
	"exchange_setRedemptionFees":  (*Server).setRedemptionFees,
	"exchange_togglePause":        (*Server).togglePause,
	"exchange_setOracleValues":    (*Server).setOracleValues,
	"exchange_setWhitelistStatus": (*Server).setWhitelistStatus,
	"exchange_adjustStablecoins":  (*Server).adjustStablecoins,
}

type addCollateralParams struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

func (s *Server) addCollateral(params []json.RawMessage) (interface{}, *RPCError) {
	var p addCollateralParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.AddCollateral(p.Symbol, p.Decimals); err != nil {
		return nil, engineError(err)
	}
	s.log.Info("collateral added", "collateral", strings.ToUpper(strings.TrimSpace(p.Symbol)))
	return map[string]bool{"ok": true}, nil
}

func (s *Server) revokeCollateral(params []json.RawMessage) (interface{}, *RPCError) {
	var p collateralParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.RevokeCollateral(p.Collateral); err != nil {
		return nil, engineError(err)
	}
	s.log.Info("collateral revoked", "collateral", strings.ToUpper(strings.TrimSpace(p.Collateral)))
	return map[string]bool{"ok": true}, nil
}

type setFeesParams struct {
	Collateral string   `json:"collateral"`
	Xs         []uint64 `json:"xs"`
	Ys         []int64  `json:"ys"`
	Mint       bool     `json:"mint"`
}

func (s *Server) setFees(params []json.RawMessage) (interface{}, *RPCError) {
	var p setFeesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.SetFees(p.Collateral, p.Xs, p.Ys, p.Mint); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type setRedemptionFeesParams struct {
	Xs []uint64 `json:"xs"`
	Ys []int64  `json:"ys"`
}

func (s *Server) setRedemptionFees(params []json.RawMessage) (interface{}, *RPCError) {
	var p setRedemptionFeesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.SetRedemptionCurveParams(p.Xs, p.Ys); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) togglePause(params []json.RawMessage) (interface{}, *RPCError) {
	var p isPausedParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	action, ok := exchange.ParseAction(p.Action)
	if !ok {
		return nil, invalidParams(fmt.Errorf("unknown action %q", p.Action))
	}
	paused, err := s.engine.TogglePause(p.Collateral, action)
	if err != nil {
		return nil, engineError(err)
	}
	s.log.Info("pause toggled", "collateral", strings.ToUpper(strings.TrimSpace(p.Collateral)), "action", p.Action, "paused", paused)
	return map[string]bool{"paused": paused}, nil
}

type setOracleValuesParams struct {
	Collateral string `json:"collateral"`
	Mint       string `json:"mint"`
	Burn       string `json:"burn"`
	Ratio      string `json:"ratio"`
	MinRatio   string `json:"minRatio"`
	Redemption string `json:"redemption"`
}

func (s *Server) setOracleValues(params []json.RawMessage) (interface{}, *RPCError) {
	var p setOracleValuesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	snapshot := exchange.OracleSnapshot{}
	fields := []struct {
		value string
		dst   **big.Int
	}{
		{p.Mint, &snapshot.Mint},
		{p.Burn, &snapshot.Burn},
		{p.Ratio, &snapshot.Ratio},
		{p.MinRatio, &snapshot.MinRatio},
		{p.Redemption, &snapshot.Redemption},
	}
	for _, field := range fields {
		parsed, err := parseAmount(field.value)
		if err != nil {
			return nil, invalidParams(err)
		}
		*field.dst = parsed
	}
	oracle := exchange.NewManualPriceSource()
	if err := oracle.Set(p.Collateral, snapshot); err != nil {
		return nil, engineError(err)
	}
	if err := s.engine.SetOracle(p.Collateral, oracle); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type setWhitelistStatusParams struct {
	Collateral  string `json:"collateral"`
	Required    bool   `json:"required"`
	Attestation string `json:"attestation"`
}

func (s *Server) setWhitelistStatus(params []json.RawMessage) (interface{}, *RPCError) {
	var p setWhitelistStatusParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	var data []byte
	if trimmed := strings.TrimSpace(p.Attestation); trimmed != "" {
		decoded, err := hexutil.Decode(trimmed)
		if err != nil {
			return nil, invalidParams(fmt.Errorf("attestation: %w", err))
		}
		data = decoded
	}
	if err := s.engine.SetWhitelistStatus(p.Collateral, p.Required, data); err != nil {
		return nil, engineError(err)
	}
	s.log.Info("whitelist status updated",
		"collateral", strings.ToUpper(strings.TrimSpace(p.Collateral)),
		"required", p.Required,
		logging.MaskField("attestation", p.Attestation),
	)
	return map[string]bool{"ok": true}, nil
}

type adjustStablecoinsParams struct {
	Collateral string `json:"collateral"`
	Delta      string `json:"delta"`
}

func (s *Server) adjustStablecoins(params []json.RawMessage) (interface{}, *RPCError) {
	var p adjustStablecoinsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	delta, err := parseAmount(p.Delta)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.AdjustStablecoins(p.Collateral, delta); err != nil {
		return nil, engineError(err)
	}
	s.log.Info("issuance adjusted",
		"collateral", strings.ToUpper(strings.TrimSpace(p.Collateral)),
		logging.MaskField("delta", delta.String()),
	)
	return map[string]bool{"ok": true}, nil
}
