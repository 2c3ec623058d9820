package entity

// Transaction is one historical transaction of the account.
type Transaction struct {
	Hash        string           `json:"hash"`
	BlockNumber uint64           `json:"blockNumber"`
	From        string           `json:"from"`
	To          string           `json:"to"`
	Operations  []TokenOperation `json:"operations"`
}

// TokenOperation is a token transfer carried by a transaction.
type TokenOperation struct {
	Contract string `json:"contract"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
}
