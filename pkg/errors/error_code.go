package errors

// ErrorCode identifies a class of failure inside the trading pipeline.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidParameter     ErrorCode = 101
	ErrCodeInvalidPeriod        ErrorCode = 102
	ErrCodeInvalidThreshold     ErrorCode = 103
	ErrCodeInvalidOrder         ErrorCode = 104

	// Data errors (200-299)
	ErrCodeDataNotFound       ErrorCode = 200
	ErrCodeMalformedBar       ErrorCode = 201
	ErrCodeDuplicateTimestamp ErrorCode = 202
	ErrCodeQueryFailed        ErrorCode = 203
	ErrCodeInsufficientData   ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300

	// Strategy errors (400-499)
	ErrCodeUnknownStrategy ErrorCode = 400
	ErrCodeStrategyFailed  ErrorCode = 401

	// Execution errors (500-599)
	ErrCodeOrderFailed       ErrorCode = 500
	ErrCodeOrderTimeout      ErrorCode = 501
	ErrCodeInsufficientFunds ErrorCode = 502
	ErrCodeNoHoldings        ErrorCode = 503

	// Engine errors (600-699)
	ErrCodeRunFailed    ErrorCode = 600
	ErrCodeNotRunnable  ErrorCode = 601
	ErrCodeLedgerFailed ErrorCode = 602

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
)
