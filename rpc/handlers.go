package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"crucible/native/exchange"
	"crucible/observability"
	"crucible/observability/logging"
)

var publicMethods = map[string]handlerFunc{
	"exchange_quoteIn":               (*Server).quoteIn,
	"exchange_quoteOut":              (*Server).quoteOut,
	"exchange_quoteRedemption":       (*Server).quoteRedemption,
	"exchange_checkAmounts":          (*Server).checkAmounts,
	"exchange_swapExactInput":        (*Server).swapExactInput,
	"exchange_swapExactOutput":       (*Server).swapExactOutput,
	"exchange_redeem":                (*Server).redeem,
	"exchange_getCollateralRatio":    (*Server).getCollateralRatio,
	"exchange_getCollateralList":     (*Server).getCollateralList,
	"exchange_getCollateralDecimals": (*Server).getCollateralDecimals,
	"exchange_getCollateralMintFees": (*Server).getCollateralMintFees,
	"exchange_getCollateralBurnFees": (*Server).getCollateralBurnFees,
	"exchange_getRedemptionFees":     (*Server).getRedemptionFees,
	"exchange_isPaused":              (*Server).isPaused,
	"exchange_getOracleValues":       (*Server).getOracleValues,
	"exchange_getReceipt":            (*Server).getReceipt,
	"exchange_stablecoin":            (*Server).stablecoin,
}

type quoteParams struct {
	Amount   string `json:"amount"`
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
}

func (s *Server) quoteIn(params []json.RawMessage) (interface{}, *RPCError) {
	var p quoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	out, err := s.engine.QuoteIn(amount, p.TokenIn, p.TokenOut)
	observability.ExchangeMetrics().RecordQuote("quote_in", err)
	if err != nil {
		return nil, engineError(err)
	}
	return quoteResult{Amount: formatAmount(out)}, nil
}

func (s *Server) quoteOut(params []json.RawMessage) (interface{}, *RPCError) {
	var p quoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	in, err := s.engine.QuoteOut(amount, p.TokenIn, p.TokenOut)
	observability.ExchangeMetrics().RecordQuote("quote_out", err)
	if err != nil {
		return nil, engineError(err)
	}
	return quoteResult{Amount: formatAmount(in)}, nil
}

type amountParams struct {
	Amount string `json:"amount"`
}

func (s *Server) quoteRedemption(params []json.RawMessage) (interface{}, *RPCError) {
	var p amountParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	q, err := s.engine.QuoteRedemption(amount)
	observability.ExchangeMetrics().RecordQuote("quote_redemption", err)
	if err != nil {
		return nil, engineError(err)
	}
	result := redemptionQuoteResult{Fee: q.Fee, Collaterals: q.Collaterals}
	for _, leg := range q.Amounts {
		result.Amounts = append(result.Amounts, formatAmount(leg))
	}
	return result, nil
}

type checkAmountsParams struct {
	Collateral string `json:"collateral"`
	Amount     string `json:"amount"`
}

func (s *Server) checkAmounts(params []json.RawMessage) (interface{}, *RPCError) {
	var p checkAmountsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := s.engine.CheckAmounts(p.Collateral, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

type swapExactInputParams struct {
	From         string `json:"from"`
	AmountIn     string `json:"amountIn"`
	AmountOutMin string `json:"amountOutMin"`
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	To           string `json:"to"`
	Deadline     int64  `json:"deadline"`
}

func (s *Server) swapExactInput(params []json.RawMessage) (interface{}, *RPCError) {
	var p swapExactInputParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(p.From)
	if err != nil {
		return nil, invalidParams(err)
	}
	to, err := parseAddress(p.To)
	if err != nil {
		return nil, invalidParams(err)
	}
	amountIn, err := parseAmount(p.AmountIn)
	if err != nil {
		return nil, invalidParams(err)
	}
	amountOutMin, err := parseOptionalAmount(p.AmountOutMin)
	if err != nil {
		return nil, invalidParams(err)
	}
	start := time.Now()
	out, err := s.engine.SwapExactInput(caller, amountIn, amountOutMin, p.TokenIn, p.TokenOut, to, p.Deadline)
	observability.ExchangeMetrics().RecordSwap("swap_exact_input", err, time.Since(start))
	if err != nil {
		return nil, engineError(err)
	}
	s.log.Info("swap settled",
		"method", "exchange_swapExactInput",
		logging.MaskField("from", p.From),
		logging.MaskField("to", p.To),
	)
	return swapResult{Amount: formatAmount(out)}, nil
}

type swapExactOutputParams struct {
	From        string `json:"from"`
	AmountOut   string `json:"amountOut"`
	AmountInMax string `json:"amountInMax"`
	TokenIn     string `json:"tokenIn"`
	TokenOut    string `json:"tokenOut"`
	To          string `json:"to"`
	Deadline    int64  `json:"deadline"`
}

func (s *Server) swapExactOutput(params []json.RawMessage) (interface{}, *RPCError) {
	var p swapExactOutputParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(p.From)
	if err != nil {
		return nil, invalidParams(err)
	}
	to, err := parseAddress(p.To)
	if err != nil {
		return nil, invalidParams(err)
	}
	amountOut, err := parseAmount(p.AmountOut)
	if err != nil {
		return nil, invalidParams(err)
	}
	amountInMax, err := parseOptionalAmount(p.AmountInMax)
	if err != nil {
		return nil, invalidParams(err)
	}
	start := time.Now()
	in, err := s.engine.SwapExactOutput(caller, amountOut, amountInMax, p.TokenIn, p.TokenOut, to, p.Deadline)
	observability.ExchangeMetrics().RecordSwap("swap_exact_output", err, time.Since(start))
	if err != nil {
		return nil, engineError(err)
	}
	s.log.Info("swap settled",
		"method", "exchange_swapExactOutput",
		logging.MaskField("from", p.From),
		logging.MaskField("to", p.To),
	)
	return swapResult{Amount: formatAmount(in)}, nil
}

type redeemParams struct {
	From          string   `json:"from"`
	Amount        string   `json:"amount"`
	To            string   `json:"to"`
	Deadline      int64    `json:"deadline"`
	MinAmountOuts []string `json:"minAmountOuts"`
}

func (s *Server) redeem(params []json.RawMessage) (interface{}, *RPCError) {
	var p redeemParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	caller, err := parseAddress(p.From)
	if err != nil {
		return nil, invalidParams(err)
	}
	to, err := parseAddress(p.To)
	if err != nil {
		return nil, invalidParams(err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, invalidParams(err)
	}
	mins := make([]*big.Int, 0, len(p.MinAmountOuts))
	for _, raw := range p.MinAmountOuts {
		min, err := parseOptionalAmount(raw)
		if err != nil {
			return nil, invalidParams(err)
		}
		mins = append(mins, min)
	}
	start := time.Now()
	legs, err := s.engine.Redeem(caller, amount, to, p.Deadline, mins)
	observability.ExchangeMetrics().RecordSwap("redeem", err, time.Since(start))
	if err != nil {
		return nil, engineError(err)
	}
	s.log.Info("redemption settled",
		"method", "exchange_redeem",
		logging.MaskField("from", p.From),
		logging.MaskField("to", p.To),
	)
	result := make([]string, 0, len(legs))
	for _, leg := range legs {
		result = append(result, formatAmount(leg))
	}
	return result, nil
}

func (s *Server) getCollateralRatio([]json.RawMessage) (interface{}, *RPCError) {
	ratio, issued, err := s.engine.CollateralRatio()
	if err != nil {
		return nil, engineError(err)
	}
	return ratioResult{Ratio: formatAmount(ratio), Issued: formatAmount(issued)}, nil
}

func (s *Server) getCollateralList([]json.RawMessage) (interface{}, *RPCError) {
	return s.engine.GetCollateralList(), nil
}

type collateralParams struct {
	Collateral string `json:"collateral"`
}

func (s *Server) getCollateralDecimals(params []json.RawMessage) (interface{}, *RPCError) {
	var p collateralParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	decimals, err := s.engine.GetCollateralDecimals(p.Collateral)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]uint8{"decimals": decimals}, nil
}

func (s *Server) getCollateralMintFees(params []json.RawMessage) (interface{}, *RPCError) {
	var p collateralParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	xs, ys, err := s.engine.GetCollateralMintFees(p.Collateral)
	if err != nil {
		return nil, engineError(err)
	}
	return curveResult{Xs: xs, Ys: ys}, nil
}

func (s *Server) getCollateralBurnFees(params []json.RawMessage) (interface{}, *RPCError) {
	var p collateralParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	xs, ys, err := s.engine.GetCollateralBurnFees(p.Collateral)
	if err != nil {
		return nil, engineError(err)
	}
	return curveResult{Xs: xs, Ys: ys}, nil
}

func (s *Server) getRedemptionFees([]json.RawMessage) (interface{}, *RPCError) {
	xs, ys := s.engine.GetRedemptionFees()
	return curveResult{Xs: xs, Ys: ys}, nil
}

type isPausedParams struct {
	Collateral string `json:"collateral"`
	Action     string `json:"action"`
}

func (s *Server) isPaused(params []json.RawMessage) (interface{}, *RPCError) {
	var p isPausedParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	action, ok := exchange.ParseAction(p.Action)
	if !ok {
		return nil, invalidParams(fmt.Errorf("unknown action %q", p.Action))
	}
	return map[string]bool{"paused": s.engine.IsPaused(p.Collateral, action)}, nil
}

func (s *Server) getOracleValues(params []json.RawMessage) (interface{}, *RPCError) {
	var p collateralParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	snapshot, err := s.engine.GetOracleValues(p.Collateral)
	if err != nil {
		return nil, engineError(err)
	}
	return oracleResult{
		Mint:       formatAmount(snapshot.Mint),
		Burn:       formatAmount(snapshot.Burn),
		Ratio:      formatAmount(snapshot.Ratio),
		MinRatio:   formatAmount(snapshot.MinRatio),
		Redemption: formatAmount(snapshot.Redemption),
	}, nil
}

type receiptParams struct {
	ID string `json:"id"`
}

func (s *Server) getReceipt(params []json.RawMessage) (interface{}, *RPCError) {
	var p receiptParams
	if err := decodeParams(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	receipt, ok, err := s.engine.Receipt(p.ID)
	if err != nil {
		return nil, engineError(err)
	}
	if !ok {
		return nil, &RPCError{Code: codeServerError, Message: fmt.Sprintf("receipt %q not found", p.ID)}
	}
	result := receiptResult{
		ID:        receipt.ID,
		Kind:      receipt.Kind,
		TokenIn:   receipt.TokenIn,
		AmountIn:  formatAmount(receipt.AmountIn),
		From:      receipt.From.Hex(),
		To:        receipt.To.Hex(),
		CreatedAt: receipt.CreatedAt,
	}
	for _, leg := range receipt.Outputs {
		result.Outputs = append(result.Outputs, receiptLegResult{Token: leg.Token, Amount: formatAmount(leg.Amount)})
	}
	return result, nil
}

func (s *Server) stablecoin([]json.RawMessage) (interface{}, *RPCError) {
	return map[string]string{"symbol": s.engine.Stablecoin()}, nil
}
