package fulfillment

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
)

func TestReportErrAggregatesFailures(t *testing.T) {
	cause := errors.New("boom")
	report := &Report{
		PartitionWarnings:    []*PartitionWarning{{LineID: uuid.New(), Reason: "seller not resolvable"}},
		ItemFailures:         []*ItemFulfillmentError{{OrderID: uuid.New(), Ref: catalog.ProductRef(uuid.New()), Err: cause}},
		NotificationFailures: []*NotificationError{{OrderID: uuid.New(), Err: errors.New("timeout")}},
	}

	err := report.Err()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.True(t, errors.Is(err, cause))

	var itemErr *ItemFulfillmentError
	assert.True(t, errors.As(err, &itemErr))
	assert.Nil(t, (&Report{}).Err())
}

func TestReportSummaryJSON(t *testing.T) {
	orderID := uuid.New()
	report := &Report{
		Orders:         []OrderOutcome{{Order: &models.Order{ID: orderID}}},
		CartCleared:    2,
		AmountMismatch: &AmountMismatch{EventAmountCents: 100, PartitionTotalCents: 90},
	}

	raw, err := json.Marshal(report.Summary())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []any{orderID.String()}, decoded["order_ids"])
	assert.Equal(t, float64(2), decoded["cart_cleared"])
	assert.NotContains(t, decoded, "item_failures")
	assert.Equal(t, map[string]any{"event_amount_cents": float64(100), "partition_total_cents": float64(90)}, decoded["amount_mismatch"])
	assert.Equal(t, []*models.Order{report.Orders[0].Order}, report.CreatedOrders())
}
