package paymentwebhook

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

func TestDecodeEventAndID(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"payment.created","data":{"id":"pay_1","object":{"payment":{"id":"pay_1","status":"completed","amount_money":{"amount":500,"currency":"USD"}}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "pay_1", event.ID(), "falls back to the data id")

	payment, ok := event.CompletedPayment()
	require.True(t, ok)
	assert.Equal(t, int64(500), payment.AmountMoney.Amount)

	event.Type = "refund.created"
	_, ok = event.CompletedPayment()
	assert.False(t, ok)

	_, err = DecodeEvent([]byte("nope"))
	assert.Error(t, err)
}

func TestPaymentMetadata(t *testing.T) {
	buyer := uuid.New()
	a, b := uuid.New(), uuid.New()
	p := &Payment{Metadata: map[string]string{
		MetaBuyerID:       buyer.String(),
		MetaCartCheckout:  "TRUE",
		MetaCartItemIDs:   a.String() + ", " + b.String() + ",",
		MetaPaymentMethod: "Cash",
	}}

	gotBuyer, err := p.BuyerID()
	require.NoError(t, err)
	assert.Equal(t, buyer, gotBuyer)
	assert.True(t, p.IsCartCheckout())
	ids, err := p.CartItemIDs()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
	assert.Equal(t, enums.PaymentMethodCash, p.PaymentMethod())

	ref := &Payment{ReferenceID: buyer.String()}
	gotBuyer, err = ref.BuyerID()
	require.NoError(t, err)
	assert.Equal(t, buyer, gotBuyer)
	assert.Equal(t, enums.PaymentMethodCard, ref.PaymentMethod())
	assert.False(t, ref.IsCartCheckout())

	_, err = (&Payment{Metadata: map[string]string{MetaBuyerID: "x"}}).BuyerID()
	assert.Error(t, err)
}

func TestDirectPurchase(t *testing.T) {
	product := uuid.New()
	p := &Payment{
		AmountMoney: Money{Amount: 900},
		Metadata: map[string]string{
			MetaProductID: product.String(),
			MetaQuantity:  "3",
		},
	}
	purchase, err := p.DirectPurchase()
	require.NoError(t, err)
	assert.Equal(t, catalog.ProductRef(product), purchase.Ref)
	assert.Equal(t, 3, purchase.Quantity)
	assert.Equal(t, int64(300), purchase.UnitPriceCents)
	assert.Nil(t, purchase.SellerID)

	p.Metadata[MetaUnitPriceCents] = "250"
	purchase, err = p.DirectPurchase()
	require.NoError(t, err)
	assert.Equal(t, int64(250), purchase.UnitPriceCents)

	p.Metadata[MetaQuantity] = "0"
	_, err = p.DirectPurchase()
	assert.Error(t, err)

	_, err = (&Payment{Metadata: map[string]string{MetaOrderType: "crop"}}).DirectPurchase()
	assert.EqualError(t, err, "direct purchase references no crop item")

	_, err = (&Payment{Metadata: map[string]string{
		MetaProductID:     uuid.NewString(),
		MetaCropListingID: uuid.NewString(),
	}}).DirectPurchase()
	assert.Error(t, err)
}

func TestDecodeEventAdoptsOrderMetadata(t *testing.T) {
	buyer := uuid.New()
	line := uuid.New()
	raw := `{"event_id":"evt_9","type":"payment.updated","data":{"object":{` +
		`"payment":{"id":"pay_9","status":"COMPLETED","metadata":{"payment_method":"card"}},` +
		`"order":{"id":"ord_9","reference_id":"` + buyer.String() + `","metadata":{` +
		`"buyer_id":"` + buyer.String() + `","cart_checkout":"true","cart_item_ids":"` + line.String() + `","payment_method":"cash"}}}}}`

	event, err := DecodeEvent([]byte(raw))
	require.NoError(t, err)
	payment, ok := event.CompletedPayment()
	require.True(t, ok)

	gotBuyer, err := payment.BuyerID()
	require.NoError(t, err)
	assert.Equal(t, buyer, gotBuyer)
	assert.True(t, payment.IsCartCheckout())
	ids, err := payment.CartItemIDs()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{line}, ids)
	assert.Equal(t, enums.PaymentMethodCard, payment.PaymentMethod(), "payment values win over the order")
	assert.Equal(t, buyer.String(), payment.ReferenceID)
}
