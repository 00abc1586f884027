package checkout

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvest-fulfillment/internal/cart"
	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/harvest-fulfillment/internal/inventory"
	"github.com/angelmondragon/harvest-fulfillment/internal/orders"
	paymentwebhook "github.com/angelmondragon/harvest-fulfillment/internal/webhooks/payment"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/dbtest"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
	"github.com/angelmondragon/harvest-fulfillment/pkg/logger"
	"github.com/angelmondragon/harvest-fulfillment/pkg/square"
	"github.com/angelmondragon/harvest-fulfillment/pkg/types"
)

type noopNotifier struct{}

func (noopNotifier) OrderCreated(context.Context, *models.Order) error { return nil }

type stubLinker struct {
	params []square.PaymentLinkParams
	err    error
}

func (s *stubLinker) CreatePaymentLink(_ context.Context, params square.PaymentLinkParams) (*square.PaymentLink, error) {
	s.params = append(s.params, params)
	if s.err != nil {
		return nil, s.err
	}
	return &square.PaymentLink{ID: "plink_1", URL: "https://square.link/u/abc", OrderID: "sq_order_1"}, nil
}

type checkoutHarness struct {
	client *db.Client
	linker *stubLinker
	svc    *Service
	buyer  models.User
}

func newCheckoutHarness(t *testing.T) *checkoutHarness {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	fulfiller, err := fulfillment.NewService(fulfillment.ServiceParams{
		Logger:    logg,
		DB:        client,
		Resolver:  catalog.NewResolver(client.DB()),
		Orders:    orders.NewRepository(client.DB()),
		Inventory: inventory.NewRepository(),
		Cart:      cart.NewRepository(client.DB()),
		Notifier:  noopNotifier{},
	})
	require.NoError(t, err)

	linker := &stubLinker{}
	svc, err := NewService(ServiceParams{
		Logger:      logg,
		Cart:        cart.NewRepository(client.DB()),
		Resolver:    catalog.NewResolver(client.DB()),
		Fulfillment: fulfiller,
		Payments:    linker,
	})
	require.NoError(t, err)
	return &checkoutHarness{
		client: client,
		linker: linker,
		svc:    svc,
		buyer:  dbtest.SeedUser(t, client, "buyer"),
	}
}

func TestExecuteCardCreatesPaymentLink(t *testing.T) {
	h := newCheckoutHarness(t)
	seller := dbtest.SeedUser(t, h.client, "seller")
	product := dbtest.SeedProduct(t, h.client, seller.ID, "Rake", 1500, 10)
	_, listing := dbtest.SeedCropListing(t, h.client, seller.ID, "Rice", 100, 50)
	first := dbtest.SeedCartItem(t, h.client, h.buyer.ID, &product.ID, nil, 2, 1500)
	second := dbtest.SeedCartItem(t, h.client, h.buyer.ID, nil, &listing.ID, 3, 100)

	result, err := h.svc.Execute(context.Background(), Input{BuyerID: h.buyer.ID, PaymentMethod: enums.PaymentMethodCard})
	require.NoError(t, err)
	assert.Equal(t, "https://square.link/u/abc", result.RedirectURL)
	assert.Equal(t, "plink_1", result.PaymentLinkID)
	assert.EqualValues(t, 3300, result.AmountCents)
	assert.Nil(t, result.Report, "card orders are created by the payment webhook")

	require.Len(t, h.linker.params, 1)
	params := h.linker.params[0]
	assert.Equal(t, h.buyer.ID.String(), params.ReferenceID)
	assert.Equal(t, "USD", params.Currency)
	assert.Equal(t, h.buyer.ID.String(), params.Metadata[paymentwebhook.MetaBuyerID])
	assert.Equal(t, "true", params.Metadata[paymentwebhook.MetaCartCheckout])
	assert.ElementsMatch(t,
		[]string{first.ID.String(), second.ID.String()},
		strings.Split(params.Metadata[paymentwebhook.MetaCartItemIDs], ","))

	names := []string{params.Lines[0].Name, params.Lines[1].Name}
	assert.ElementsMatch(t, []string{"Rake", "Rice"}, names)

	var count int64
	require.NoError(t, h.client.DB().Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExecuteCardWithoutProcessor(t *testing.T) {
	h := newCheckoutHarness(t)
	h.svc.payments = nil
	seller := dbtest.SeedUser(t, h.client, "seller")
	product := dbtest.SeedProduct(t, h.client, seller.ID, "Rake", 1500, 10)
	dbtest.SeedCartItem(t, h.client, h.buyer.ID, &product.ID, nil, 1, 1500)

	_, err := h.svc.Execute(context.Background(), Input{BuyerID: h.buyer.ID, PaymentMethod: enums.PaymentMethodCard})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestExecuteCardWrapsProcessorErrors(t *testing.T) {
	h := newCheckoutHarness(t)
	h.linker.err = errors.New("dial tcp: i/o timeout")
	seller := dbtest.SeedUser(t, h.client, "seller")
	product := dbtest.SeedProduct(t, h.client, seller.ID, "Rake", 1500, 10)
	dbtest.SeedCartItem(t, h.client, h.buyer.ID, &product.ID, nil, 1, 1500)

	_, err := h.svc.Execute(context.Background(), Input{BuyerID: h.buyer.ID, PaymentMethod: enums.PaymentMethodCard})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestExecuteCashFulfillsImmediately(t *testing.T) {
	h := newCheckoutHarness(t)
	sellerA := dbtest.SeedUser(t, h.client, "seller-a")
	sellerB := dbtest.SeedUser(t, h.client, "seller-b")
	product := dbtest.SeedProduct(t, h.client, sellerA.ID, "Rake", 1500, 10)
	_, listing := dbtest.SeedCropListing(t, h.client, sellerB.ID, "Rice", 100, 5)
	dbtest.SeedCartItem(t, h.client, h.buyer.ID, &product.ID, nil, 2, 1500)
	dbtest.SeedCartItem(t, h.client, h.buyer.ID, nil, &listing.ID, 5, 100)

	result, err := h.svc.Execute(context.Background(), Input{
		BuyerID:         h.buyer.ID,
		PaymentMethod:   enums.PaymentMethodCash,
		ShippingAddress: &types.Address{Line1: "1 Farm Rd", City: "Fresno", State: "ca", PostalCode: "93650", Country: "us"},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Empty(t, h.linker.params)
	assert.EqualValues(t, 3500, result.AmountCents)

	created := result.Report.CreatedOrders()
	require.Len(t, created, 2)
	for _, order := range created {
		assert.Equal(t, enums.PaymentMethodCash, order.PaymentMethod)
		require.NotNil(t, order.PaymentReference)
		assert.True(t, strings.HasPrefix(*order.PaymentReference, "cash-"))
	}

	remaining, err := cart.NewRepository(h.client.DB()).ListByBuyer(context.Background(), h.buyer.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestExecuteCashWithNarrowedCart(t *testing.T) {
	h := newCheckoutHarness(t)
	seller := dbtest.SeedUser(t, h.client, "seller")
	product := dbtest.SeedProduct(t, h.client, seller.ID, "Rake", 1500, 10)
	picked := dbtest.SeedCartItem(t, h.client, h.buyer.ID, &product.ID, nil, 1, 1500)
	kept := dbtest.SeedCartItem(t, h.client, h.buyer.ID, &product.ID, nil, 4, 1500)

	result, err := h.svc.Execute(context.Background(), Input{
		BuyerID:       h.buyer.ID,
		PaymentMethod: enums.PaymentMethodCash,
		CartItemIDs:   []uuid.UUID{picked.ID},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1500, result.AmountCents)

	remaining, err := cart.NewRepository(h.client.DB()).ListByBuyer(context.Background(), h.buyer.ID, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
}

func TestExecuteCashNoOrdersIsStateConflict(t *testing.T) {
	h := newCheckoutHarness(t)
	missing := uuid.New()
	dbtest.SeedCartItem(t, h.client, h.buyer.ID, &missing, nil, 1, 1500)

	_, err := h.svc.Execute(context.Background(), Input{BuyerID: h.buyer.ID, PaymentMethod: enums.PaymentMethodCash})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestExecuteValidation(t *testing.T) {
	h := newCheckoutHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input Input
	}{
		{name: "missing buyer", input: Input{PaymentMethod: enums.PaymentMethodCard}},
		{name: "bad method", input: Input{BuyerID: h.buyer.ID, PaymentMethod: "barter"}},
		{name: "empty cart", input: Input{BuyerID: h.buyer.ID, PaymentMethod: enums.PaymentMethodCash}},
		{name: "bad address", input: Input{
			BuyerID:         h.buyer.ID,
			PaymentMethod:   enums.PaymentMethodCash,
			ShippingAddress: &types.Address{City: "Fresno"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Execute(ctx, tt.input)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}
