package exchangedb

// Key layout for the exchange ledger. Every key lives under a single
// namespace so the database can host other state without collisions.
const (
	keyPrefix        = "exchange/"
	totalIssuedKey   = keyPrefix + "total"
	issuedKeyPrefix  = keyPrefix + "issued/"
	balanceKeyPrefix = keyPrefix + "balance/"
	receiptKeyPrefix = keyPrefix + "receipt/"
)

func issuedKey(collateral string) []byte {
	return []byte(issuedKeyPrefix + collateral)
}

func balanceKey(collateral string) []byte {
	return []byte(balanceKeyPrefix + collateral)
}

func receiptKey(id string) []byte {
	return []byte(receiptKeyPrefix + id)
}
