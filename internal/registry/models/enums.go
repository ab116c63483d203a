package models

// ProductType is the certification class of a batch.
type ProductType string

const (
	ProductTypeOrganic     ProductType = "organic"
	ProductTypeFairTrade   ProductType = "fair-trade"
	ProductTypeSustainable ProductType = "sustainable"
)

// Valid reports whether the product type is one of the fixed set.
func (p ProductType) Valid() bool {
	switch p {
	case ProductTypeOrganic, ProductTypeFairTrade, ProductTypeSustainable:
		return true
	}
	return false
}

// Currency is the denomination of a batch's price.
type Currency string

const (
	CurrencySTX Currency = "STX"
	CurrencyUSD Currency = "USD"
	CurrencyBTC Currency = "BTC"
)

// Valid reports whether the currency is one of the fixed set.
func (c Currency) Valid() bool {
	switch c {
	case CurrencySTX, CurrencyUSD, CurrencyBTC:
		return true
	}
	return false
}
