package core

// Operation represents a type of query that can be performed against an
// exchange account.
type Operation int

// Operation constants define all supported exchange account queries.
const (
	// OpGetAccount retrieves the account profile; used for key probing.
	OpGetAccount Operation = iota
	// OpGetWalletBalance retrieves the current wallet balance.
	OpGetWalletBalance
	// OpGetWalletHistory retrieves the full wallet ledger history.
	OpGetWalletHistory
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpGetAccount:
		return "GET_ACCOUNT"
	case OpGetWalletBalance:
		return "GET_WALLET_BALANCE"
	case OpGetWalletHistory:
		return "GET_WALLET_HISTORY"
	default:
		return "UNKNOWN_OPERATION"
	}
}

// Params holds operation-specific string parameters.
type Params map[string]string
