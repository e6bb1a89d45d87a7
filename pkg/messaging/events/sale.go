// Package events contains the events published by the checkout service.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/gopos/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleLine describes one sold product inside a SaleCompletedEvent.
type SaleLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SaleCompletedEvent is emitted after a checkout commit succeeded.
type SaleCompletedEvent struct {
	Carrier        map[string]string `json:"carrier,omitempty"`
	SaleID         uuid.UUID         `json:"sale_id"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	AmountReceived decimal.Decimal   `json:"amount_received"`
	ChangeAmount   decimal.Decimal   `json:"change_amount"`
	Lines          []SaleLine        `json:"lines"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (e SaleCompletedEvent) Subject() string {
	return messaging.SalesCompletedSubject
}

func (e SaleCompletedEvent) MessageID() string {
	return e.SaleID.String()
}

func (e SaleCompletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
