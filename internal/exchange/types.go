package exchange

import "encoding/json"

// Balance is an account balance amount with its currency.
type Balance struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Account is a brokerage account as returned by the exchange.
type Account struct {
	UUID             string  `json:"uuid"`
	Name             string  `json:"name"`
	Currency         string  `json:"currency"`
	AvailableBalance Balance `json:"available_balance"`
}

// accountsResponse is the wire shape of the accounts endpoint.
type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// productResponse is the wire shape of the product endpoint. Only the
// spot price is consumed; the exchange encodes it as a decimal string.
type productResponse struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

// fillsResponse is the wire shape of the historical fills endpoint.
// Fills are kept as raw JSON and handed to the normalizer, which owns
// field extraction across the exchange's shifting payload shapes.
type fillsResponse struct {
	Fills []json.RawMessage `json:"fills"`
}
