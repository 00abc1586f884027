package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/internal/fulfillment"
	paymentwebhook "github.com/angelmondragon/harvest-fulfillment/internal/webhooks/payment"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/square"
	"github.com/angelmondragon/harvest-fulfillment/pkg/types"
)

const fallbackItemName = "Marketplace item"

type cartLister interface {
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error)
}

type fulfiller interface {
	Fulfill(ctx context.Context, req fulfillment.Request) (*fulfillment.Report, error)
}

// PaymentLinker creates hosted card checkouts.
type PaymentLinker interface {
	CreatePaymentLink(ctx context.Context, params square.PaymentLinkParams) (*square.PaymentLink, error)
}

// Input is a buyer's request to check out their cart.
type Input struct {
	BuyerID       uuid.UUID
	PaymentMethod enums.PaymentMethod
	// CartItemIDs narrows the checkout to these lines; empty means the whole cart.
	CartItemIDs     []uuid.UUID
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	BuyerEmail      string
}

// Result carries the card redirect, or the cash fulfillment outcome.
type Result struct {
	PaymentMethod enums.PaymentMethod
	AmountCents   int64
	RedirectURL   string
	PaymentLinkID string
	Report        *fulfillment.Report
}

type ServiceParams struct {
	Logger      *logger.Logger
	Cart        cartLister
	Resolver    catalog.Resolver
	Fulfillment fulfiller
	// Payments may be nil; card checkout then fails with a dependency error.
	Payments PaymentLinker
	Currency string
}

// Service starts checkouts. Card payments settle asynchronously through the
// payment webhook; cash orders are fulfilled immediately.
type Service struct {
	logg        *logger.Logger
	cart        cartLister
	resolver    catalog.Resolver
	fulfillment fulfiller
	payments    PaymentLinker
	currency    string
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	case params.Cart == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	case params.Resolver == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog resolver required")
	case params.Fulfillment == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment service required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		logg:        params.Logger,
		cart:        params.Cart,
		resolver:    params.Resolver,
		fulfillment: params.Fulfillment,
		payments:    params.Payments,
		currency:    currency,
	}, nil
}

// Execute validates the input and dispatches on the payment method.
func (s *Service) Execute(ctx context.Context, input Input) (*Result, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	for _, addr := range []*types.Address{input.ShippingAddress, input.BillingAddress} {
		if addr == nil {
			continue
		}
		if err := addr.Normalize().Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
		}
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"buyer_id":       input.BuyerID.String(),
		"payment_method": string(input.PaymentMethod),
	})

	items, err := s.cart.ListByBuyer(ctx, input.BuyerID, input.CartItemIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	if input.PaymentMethod == enums.PaymentMethodCash {
		return s.cash(ctx, input, items)
	}
	return s.card(ctx, input, items)
}

func (s *Service) cash(ctx context.Context, input Input, items []models.CartItem) (*Result, error) {
	report, err := s.fulfillment.Fulfill(ctx, fulfillment.Request{
		BuyerID:          input.BuyerID,
		Lines:            fulfillment.LinesFromCart(items),
		PaymentMethod:    enums.PaymentMethodCash,
		PaymentReference: "cash-" + uuid.NewString(),
		Currency:         s.currency,
		ShippingAddress:  normalizedAddress(input.ShippingAddress),
		BillingAddress:   normalizedAddress(input.BillingAddress),
		ClearCart:        true,
	})
	if err != nil {
		return nil, err
	}
	if len(report.Orders) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, report.Err(), "no order could be created").
			WithDetails(report.Summary())
	}

	var total int64
	for _, order := range report.CreatedOrders() {
		total += order.TotalCents
	}
	s.logg.Info(s.logg.WithField(ctx, "orders", len(report.Orders)), "cash checkout fulfilled")
	return &Result{
		PaymentMethod: enums.PaymentMethodCash,
		AmountCents:   total,
		Report:        report,
	}, nil
}

func (s *Service) card(ctx context.Context, input Input, items []models.CartItem) (*Result, error) {
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card checkout not configured")
	}

	lines := make([]square.LinkLine, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, square.LinkLine{
			Name:           s.itemName(ctx, item),
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
		ids = append(ids, item.ID.String())
	}

	params := square.PaymentLinkParams{
		ReferenceID: input.BuyerID.String(),
		Currency:    s.currency,
		Description: "Harvest marketplace order",
		BuyerEmail:  input.BuyerEmail,
		Lines:       lines,
		Metadata: map[string]string{
			paymentwebhook.MetaBuyerID:       input.BuyerID.String(),
			paymentwebhook.MetaCartCheckout:  strconv.FormatBool(true),
			paymentwebhook.MetaCartItemIDs:   strings.Join(ids, ","),
			paymentwebhook.MetaPaymentMethod: string(enums.PaymentMethodCard),
		},
	}
	link, err := s.payments.CreatePaymentLink(ctx, params)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment link")
	}

	s.logg.Info(s.logg.WithField(ctx, "payment_link_id", link.ID), "card checkout started")
	return &Result{
		PaymentMethod: enums.PaymentMethodCard,
		AmountCents:   params.TotalCents(),
		RedirectURL:   link.URL,
		PaymentLinkID: link.ID,
	}, nil
}

func (s *Service) itemName(ctx context.Context, item models.CartItem) string {
	ref, err := catalog.RefFromIDs(item.ProductID, item.CropListingID)
	if err != nil {
		return fallbackItemName
	}
	res, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		if !errors.Is(err, catalog.ErrUnresolvable) {
			s.logg.Warn(ctx, fmt.Sprintf("resolve item name: %v", err))
		}
		return fallbackItemName
	}
	if strings.TrimSpace(res.ItemName) == "" {
		return fallbackItemName
	}
	return res.ItemName
}

func normalizedAddress(addr *types.Address) *types.Address {
	if addr == nil {
		return nil
	}
	out := addr.Normalize()
	return &out
}
