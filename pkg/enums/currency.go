package enums

type Currency string

const (
	CurrencyUSD Currency = "USD"
)
