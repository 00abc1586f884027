package paymentwebhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/metrics"
	"github.com/angelmondragon/harvest-fulfillment/pkg/types"
)

// ErrAlreadyProcessed is returned for an event id that was already handled.
// Callers acknowledge it as success.
var ErrAlreadyProcessed = errors.New("payment event already processed")

type fulfiller interface {
	Fulfill(ctx context.Context, req fulfillment.Request) (*fulfillment.Report, error)
}

type cartLister interface {
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error)
}

type claimer interface {
	Claim(ctx context.Context, eventID, paymentID string) (Claim, error)
	Release(ctx context.Context, eventID, paymentID string) error
}

type ProcessorParams struct {
	Logger      *logger.Logger
	Claims      claimer
	Fulfillment fulfiller
	Cart        cartLister
	Secret      string
	Metrics     *metrics.FulfillmentMetrics
}

// Processor authenticates, deduplicates and fulfills payment events.
type Processor struct {
	logg    *logger.Logger
	claims  claimer
	fulfill fulfiller
	cart    cartLister
	secret  string
	metrics *metrics.FulfillmentMetrics
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Claims == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event claims required")
	}
	if params.Fulfillment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment service required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart repository required")
	}
	return &Processor{
		logg:    params.Logger,
		claims:  params.Claims,
		fulfill: params.Fulfillment,
		cart:    params.Cart,
		secret:  params.Secret,
		metrics: params.Metrics,
	}, nil
}

// Result describes what happened to one accepted delivery.
type Result struct {
	EventID string
	// Ignored is set for authentic events that carry nothing to fulfill.
	Ignored bool
	Reason  string
	Report  *fulfillment.Report
}

// Process handles one webhook delivery. It returns *AuthenticationError for a
// bad signature, ErrAlreadyProcessed for a duplicate, and a DEPENDENCY_ERROR
// when nothing was fulfilled and a retry can succeed. Every other outcome is a
// Result, including fulfillment runs with partial failures.
func (p *Processor) Process(ctx context.Context, raw []byte, signature string) (*Result, error) {
	if err := Authenticate(raw, signature, p.secret); err != nil {
		return nil, err
	}

	event, err := DecodeEvent(raw)
	if err != nil {
		p.logg.Warn(ctx, err.Error())
		return &Result{Ignored: true, Reason: "malformed event"}, nil
	}
	eventID := event.ID()
	if eventID == "" {
		p.logg.Warn(ctx, "payment event without id ignored")
		return &Result{Ignored: true, Reason: "missing event id"}, nil
	}
	ctx = p.logg.WithEventID(ctx, eventID)

	payment, ok := event.CompletedPayment()
	if !ok {
		p.logg.Debug(p.logg.WithField(ctx, "type", event.Type), "payment event not actionable")
		return &Result{EventID: eventID, Ignored: true, Reason: "not a completed payment"}, nil
	}

	claim, err := p.claims.Claim(ctx, eventID, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim payment event")
	}
	if claim != Claimed {
		p.metrics.IncDuplicateEvent(claim.String())
		p.logg.Info(p.logg.WithField(ctx, "duplicate_of", claim.String()), "duplicate payment event acknowledged")
		return nil, ErrAlreadyProcessed
	}

	req, reason, err := p.buildRequest(ctx, eventID, payment)
	if err != nil {
		// nothing was written, so the marker is released for the retry
		if relErr := p.claims.Release(ctx, eventID, payment.ID); relErr != nil {
			p.logg.Error(ctx, "release payment event claim", relErr)
		}
		return nil, err
	}
	if reason != "" {
		p.logg.Warn(ctx, fmt.Sprintf("payment event not fulfilled: %s", reason))
		return &Result{EventID: eventID, Ignored: true, Reason: reason}, nil
	}

	report, err := p.fulfill.Fulfill(ctx, req)
	if err != nil {
		// rejected input keeps its marker
		p.logg.Error(ctx, "fulfillment rejected payment event", err)
		return &Result{EventID: eventID, Ignored: true, Reason: err.Error()}, nil
	}
	if err := report.Err(); err != nil {
		p.logg.Warn(ctx, fmt.Sprintf("payment event fulfilled with failures: %v", err))
	}
	return &Result{EventID: eventID, Report: report}, nil
}

// buildRequest returns a non-empty reason for events that carry nothing to
// fulfill, and an error only when loading the cart failed.
func (p *Processor) buildRequest(ctx context.Context, eventID string, payment *Payment) (fulfillment.Request, string, error) {
	buyerID, err := payment.BuyerID()
	if err != nil {
		return fulfillment.Request{}, err.Error(), nil
	}
	ctx = p.logg.WithField(ctx, "buyer_id", buyerID.String())

	req := fulfillment.Request{
		BuyerID:          buyerID,
		PaymentMethod:    payment.PaymentMethod(),
		PaymentReference: payment.ID,
		EventID:          eventID,
		AmountCents:      payment.AmountMoney.Amount,
		Currency:         payment.AmountMoney.Currency,
		ShippingAddress:  normalized(payment.ShippingAddress),
		BillingAddress:   normalized(payment.BillingAddress),
	}

	if payment.IsCartCheckout() {
		ids, err := payment.CartItemIDs()
		if err != nil {
			return req, err.Error(), nil
		}
		items, err := p.cart.ListByBuyer(ctx, buyerID, ids)
		if err != nil {
			return req, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(items) == 0 {
			return req, "cart is empty", nil
		}
		req.Lines = fulfillment.LinesFromCart(items)
		req.ClearCart = true
		return req, "", nil
	}

	purchase, err := payment.DirectPurchase()
	if err != nil {
		return req, err.Error(), nil
	}
	req.Lines = []fulfillment.Line{{
		Ref:            purchase.Ref,
		Quantity:       purchase.Quantity,
		UnitPriceCents: purchase.UnitPriceCents,
		SellerOverride: purchase.SellerID,
	}}
	return req, "", nil
}

func normalized(addr *types.Address) *types.Address {
	if addr == nil {
		return nil
	}
	out := addr.Normalize()
	if out.Validate() != nil {
		return nil
	}
	return &out
}
