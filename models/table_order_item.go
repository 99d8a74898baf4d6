package models

import "github.com/shopspring/decimal"

// TableOrderItem is one cart line. Price and Name are snapshots taken when
// the line was first added and are never refreshed from the catalog.
type TableOrderItem struct {
	ProductID     uint            `json:"product_id"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Name          string          `json:"name"`
	CustomerToken string          `json:"customer_token"`
	Processed     bool            `json:"processed"`
}

func (i TableOrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
