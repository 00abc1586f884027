package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/angelmondragon/harvest-fulfillment/api/responses"
	paymentwebhook "github.com/angelmondragon/harvest-fulfillment/internal/webhooks/payment"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

const (
	defaultSignatureHeader = "X-Payment-Signature"
	defaultMaxBodyBytes    = 1 << 20
)

// PaymentProcessor handles one raw payment event delivery.
type PaymentProcessor interface {
	Process(ctx context.Context, raw []byte, signature string) (*paymentwebhook.Result, error)
}

type PaymentWebhookParams struct {
	Processor       PaymentProcessor
	SignatureHeader string
	MaxBodyBytes    int64
	Logger          *logger.Logger
}

type paymentWebhookResponse struct {
	Received bool     `json:"received"`
	EventID  string   `json:"event_id,omitempty"`
	Orders   []string `json:"orders,omitempty"`
	Ignored  bool     `json:"ignored,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// PaymentWebhook acknowledges payment events. Only a failed signature check is
// a client error; duplicates and partially fulfilled events answer 200 so the
// sender stops retrying. A 503 is returned only when nothing was processed.
func PaymentWebhook(params PaymentWebhookParams) http.HandlerFunc {
	header := params.SignatureHeader
	if header == "" {
		header = defaultSignatureHeader
	}
	maxBody := params.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	logg := params.Logger

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if params.Processor == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment processor unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		result, err := params.Processor.Process(ctx, payload, r.Header.Get(header))
		if err != nil {
			var authErr *paymentwebhook.AuthenticationError
			switch {
			case errors.As(err, &authErr):
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, authErr.Reason))
			case errors.Is(err, paymentwebhook.ErrAlreadyProcessed):
				responses.WriteSuccess(w, paymentWebhookResponse{Received: true})
			default:
				responses.WriteError(ctx, logg, w, err)
			}
			return
		}

		resp := paymentWebhookResponse{Received: true}
		if result != nil {
			resp.EventID = result.EventID
			resp.Ignored = result.Ignored
			resp.Reason = result.Reason
			if result.Report != nil {
				for _, order := range result.Report.CreatedOrders() {
					resp.Orders = append(resp.Orders, order.ID.String())
				}
			}
		}
		if logg != nil && resp.EventID != "" {
			logg.Info(logg.WithEventID(ctx, resp.EventID), fmt.Sprintf("payment event acknowledged with %d orders", len(resp.Orders)))
		}
		responses.WriteSuccess(w, resp)
	}
}
