package exchange

import "errors"

var (
	// ErrInvalidTokens indicates the tokenIn/tokenOut pair could not be classified
	// as a mint or a burn against a registered collateral.
	ErrInvalidTokens = errors.New("exchange: invalid token pair")
	// ErrPaused indicates the requested action is disabled for the collateral.
	ErrPaused = errors.New("exchange: action paused")
	// ErrDeadlineExceeded indicates the request was evaluated past its expiry.
	ErrDeadlineExceeded = errors.New("exchange: deadline exceeded")
	// ErrTooSmallAmountOut indicates the quoted output fell below the caller's bound.
	ErrTooSmallAmountOut = errors.New("exchange: amount out below minimum")
	// ErrTooBigAmountIn indicates the quoted input exceeded the caller's bound.
	ErrTooBigAmountIn = errors.New("exchange: amount in above maximum")
	// ErrNotWhitelisted indicates the payout recipient lacks the required authorization.
	ErrNotWhitelisted = errors.New("exchange: recipient not whitelisted")
	// ErrInsufficientReserves indicates the payout exceeds the available reserves.
	ErrInsufficientReserves = errors.New("exchange: insufficient reserves")
	// ErrInvalidCurve indicates a malformed breakpoint configuration.
	ErrInvalidCurve = errors.New("exchange: invalid fee curve")
	// ErrUnknownCollateral indicates the collateral symbol is not registered.
	ErrUnknownCollateral = errors.New("exchange: unknown collateral")
	// ErrInvalidAmount indicates a zero, negative, or missing amount.
	ErrInvalidAmount = errors.New("exchange: amount must be positive")
)
