package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/harvest-fulfillment/pkg/config"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// PaymentLink is the hosted checkout page handed back to the buyer.
type PaymentLink struct {
	ID      string
	URL     string
	OrderID string
}

// Client exposes Square primitives with centralized auth, logging, idempotency, and error mapping.
type Client struct {
	sdk         *sqclient.Client
	accessToken string
	environment string
	locationID  string
	redirectURL string
	baseURL     string
	logger      *logger.Logger
}

// NewClient initializes the Square wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	baseURL := baseURLs[env]
	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURL),
		sqoption.WithToken(accessToken),
	)

	c := &Client{
		sdk:         sdk,
		accessToken: accessToken,
		environment: env,
		locationID:  locationID,
		redirectURL: strings.TrimSpace(cfg.RedirectURL),
		baseURL:     baseURL,
		logger:      logg,
	}

	logg.Info(logg.WithField(ctx, "environment", env), "square client initialized")
	return c, nil
}

// Environment reports the normalized Square environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// LocationID returns the Square location orders are created under.
func (c *Client) LocationID() string {
	if c == nil {
		return ""
	}
	return c.locationID
}

// NewIdempotencyKey returns a unique key for Square operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "hv"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreatePaymentLink creates a hosted checkout page for an itemized order.
func (c *Client) CreatePaymentLink(ctx context.Context, params PaymentLinkParams) (*PaymentLink, error) {
	if c == nil || c.sdk == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square client not configured")
	}
	if len(params.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link requires at least one line")
	}
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	if params.RedirectURL == "" {
		params.RedirectURL = c.redirectURL
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("checkout.link", params.IdempotencyKey))
	c.log(ctx, "request", "create_payment_link", map[string]any{
		"location_id":  params.LocationID,
		"reference_id": params.ReferenceID,
		"lines":        len(params.Lines),
		"amount":       params.TotalCents(),
	})

	resp, err := c.sdk.Checkout.PaymentLinks.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment_link", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create payment link")
	}

	link := resp.GetPaymentLink()
	if link == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square returned no payment link")
	}
	out := &PaymentLink{
		ID:      stringValue(link.GetID()),
		URL:     stringValue(link.GetURL()),
		OrderID: stringValue(link.GetOrderID()),
	}
	c.log(ctx, "response", "create_payment_link", map[string]any{
		"payment_link_id": out.ID,
		"order_id":        out.OrderID,
	})
	return out, nil
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range c.extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeDependency
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("square %s failed", op))
}

func (c *Client) extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

// domainCodeForStatus maps Square HTTP statuses onto domain codes. Credential
// and throttling failures are ours to fix, so they surface as dependency errors.
func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return pkgerrors.CodeDependency
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidSquareEnv
	}
}
