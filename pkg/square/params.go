package square

import (
	"strconv"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcheckout "github.com/square/square-go-sdk/checkout"
)

// LinkLine is one itemized line on the Square order behind a payment link.
type LinkLine struct {
	Name           string
	Quantity       int
	UnitPriceCents int64
	Note           string
}

// PaymentLinkParams describes a hosted checkout for one buyer.
type PaymentLinkParams struct {
	LocationID     string
	ReferenceID    string
	Currency       string
	Description    string
	RedirectURL    string
	BuyerEmail     string
	Lines          []LinkLine
	Metadata       map[string]string
	IdempotencyKey string
}

// TotalCents sums the line totals.
func (p PaymentLinkParams) TotalCents() int64 {
	var total int64
	for _, line := range p.Lines {
		total += line.UnitPriceCents * int64(line.Quantity)
	}
	return total
}

func (p PaymentLinkParams) toSquareRequest(idempotencyKey string) *sqcheckout.CreatePaymentLinkRequest {
	order := &sq.Order{
		LocationID: p.LocationID,
		LineItems:  make([]*sq.OrderLineItem, 0, len(p.Lines)),
	}
	if trimmed := strings.TrimSpace(p.ReferenceID); trimmed != "" {
		order.ReferenceID = ptrString(trimmed)
	}
	if len(p.Metadata) > 0 {
		order.Metadata = make(map[string]*string, len(p.Metadata))
		for k, v := range p.Metadata {
			order.Metadata[k] = ptrString(v)
		}
	}
	for _, line := range p.Lines {
		item := &sq.OrderLineItem{
			Quantity:       strconv.Itoa(line.Quantity),
			Name:           ptrString(line.Name),
			BasePriceMoney: moneyPtr(line.UnitPriceCents, p.Currency),
		}
		if trimmed := strings.TrimSpace(line.Note); trimmed != "" {
			item.Note = ptrString(trimmed)
		}
		order.LineItems = append(order.LineItems, item)
	}

	req := &sqcheckout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		Order:          order,
	}
	if trimmed := strings.TrimSpace(p.Description); trimmed != "" {
		req.Description = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(p.RedirectURL); trimmed != "" {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: ptrString(trimmed)}
	}
	if trimmed := strings.TrimSpace(p.BuyerEmail); trimmed != "" {
		req.PrePopulatedData = &sq.PrePopulatedData{BuyerEmail: ptrString(trimmed)}
	}
	return req
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
