package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

type stubResolver struct {
	byID map[uuid.UUID]catalog.Resolution
	err  error
}

func (s stubResolver) Resolve(_ context.Context, ref catalog.Ref) (catalog.Resolution, error) {
	if s.err != nil {
		return catalog.Resolution{}, s.err
	}
	res, ok := s.byID[ref.ID]
	if !ok {
		return catalog.Resolution{}, catalog.ErrUnresolvable
	}
	return res, nil
}

func TestPartitionGroupsBySellerPreservingOrder(t *testing.T) {
	sellerA, sellerB := uuid.New(), uuid.New()
	p1, p2, l1 := uuid.New(), uuid.New(), uuid.New()
	resolver := stubResolver{byID: map[uuid.UUID]catalog.Resolution{
		p1: {SellerID: sellerA, SellerName: "Green Acres", ItemName: "Hoe"},
		l1: {SellerID: sellerB, SellerName: "Hill Farm", ItemName: "Maize"},
		p2: {SellerID: sellerA, SellerName: "Green Acres", ItemName: "Rake"},
	}}
	lines := []Line{
		{ID: uuid.New(), Ref: catalog.ProductRef(p1), Quantity: 2, UnitPriceCents: 500},
		{ID: uuid.New(), Ref: catalog.CropListingRef(l1), Quantity: 3, UnitPriceCents: 1200},
		{ID: uuid.New(), Ref: catalog.ProductRef(p2), Quantity: 1, UnitPriceCents: 750},
	}

	partitions, warnings := Partition(context.Background(), resolver, lines)
	require.Empty(t, warnings)
	require.Len(t, partitions, 2)

	assert.Equal(t, sellerA, partitions[0].SellerID)
	assert.Equal(t, "Green Acres", partitions[0].SellerName)
	assert.Equal(t, enums.OrderTypeProduct, partitions[0].OrderType)
	assert.Equal(t, int64(2*500+750), partitions[0].TotalCents)
	require.Len(t, partitions[0].Lines, 2)
	assert.Equal(t, lines[0].ID, partitions[0].Lines[0].ID)
	assert.Equal(t, lines[2].ID, partitions[0].Lines[1].ID)
	assert.Equal(t, "Rake", partitions[0].Lines[1].ItemName)

	assert.Equal(t, sellerB, partitions[1].SellerID)
	assert.Equal(t, enums.OrderTypeCrop, partitions[1].OrderType)
	assert.Equal(t, int64(3600), partitions[1].TotalCents)
}

func TestPartitionEveryLineLandsInExactlyOnePartition(t *testing.T) {
	sellers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	byID := map[uuid.UUID]catalog.Resolution{}
	var lines []Line
	for i := 0; i < 12; i++ {
		id := uuid.New()
		byID[id] = catalog.Resolution{SellerID: sellers[i%len(sellers)], SellerName: "s"}
		lines = append(lines, Line{ID: uuid.New(), Ref: catalog.ProductRef(id), Quantity: i + 1, UnitPriceCents: 100})
	}

	partitions, warnings := Partition(context.Background(), stubResolver{byID: byID}, lines)
	require.Empty(t, warnings)
	require.Len(t, partitions, len(sellers))

	seen := map[uuid.UUID]int{}
	var total int64
	for _, p := range partitions {
		var sum int64
		for _, line := range p.Lines {
			seen[line.ID]++
			sum += line.Subtotal()
		}
		assert.Equal(t, sum, p.TotalCents)
		total += p.TotalCents
	}
	assert.Len(t, seen, len(lines))
	for id, n := range seen {
		assert.Equal(t, 1, n, "line %s", id)
	}
	assert.Equal(t, int64(100*(12*13/2)), total)
}

func TestPartitionDropsUnresolvableLines(t *testing.T) {
	seller := uuid.New()
	known := uuid.New()
	resolver := stubResolver{byID: map[uuid.UUID]catalog.Resolution{
		known: {SellerID: seller, SellerName: "Known"},
	}}
	missing := Line{ID: uuid.New(), Ref: catalog.ProductRef(uuid.New()), Quantity: 1, UnitPriceCents: 100}
	zeroRef := Line{ID: uuid.New(), Quantity: 1}
	badQty := Line{ID: uuid.New(), Ref: catalog.ProductRef(known), Quantity: 0}
	good := Line{ID: uuid.New(), Ref: catalog.ProductRef(known), Quantity: 1, UnitPriceCents: 100}

	partitions, warnings := Partition(context.Background(), resolver, []Line{missing, zeroRef, badQty, good})
	require.Len(t, partitions, 1)
	assert.Equal(t, []uuid.UUID{good.ID}, partitions[0].CartLineIDs())

	require.Len(t, warnings, 3)
	assert.Equal(t, missing.ID, warnings[0].LineID)
	assert.True(t, errors.Is(warnings[0], catalog.ErrUnresolvable))
	assert.Equal(t, zeroRef.ID, warnings[1].LineID)
	assert.Equal(t, badQty.ID, warnings[2].LineID)
}

func TestPartitionSellerOverride(t *testing.T) {
	resolved, override := uuid.New(), uuid.New()
	product := uuid.New()
	resolver := stubResolver{byID: map[uuid.UUID]catalog.Resolution{
		product: {SellerID: resolved, SellerName: "Resolved", ItemName: "Seeds"},
	}}

	partitions, warnings := Partition(context.Background(), resolver, []Line{
		{Ref: catalog.ProductRef(product), Quantity: 1, UnitPriceCents: 10, SellerOverride: &override},
	})
	require.Empty(t, warnings)
	require.Len(t, partitions, 1)
	assert.Equal(t, override, partitions[0].SellerID)
	assert.Equal(t, "Seller", partitions[0].SellerName)
	assert.Equal(t, "Seeds", partitions[0].Lines[0].ItemName)
	assert.Empty(t, partitions[0].CartLineIDs(), "synthetic lines carry no cart id")

	// the override also rescues a lookup failure
	partitions, warnings = Partition(context.Background(), stubResolver{err: errors.New("db down")}, []Line{
		{Ref: catalog.CropListingRef(uuid.New()), Quantity: 2, UnitPriceCents: 10, SellerOverride: &override},
	})
	require.Empty(t, warnings)
	require.Len(t, partitions, 1)
	assert.Equal(t, "Crop listing", partitions[0].Lines[0].ItemName)
}

func TestLinesFromCart(t *testing.T) {
	productID, listingID := uuid.New(), uuid.New()
	items := []models.CartItem{
		{ID: uuid.New(), ProductID: &productID, Quantity: 2, UnitPriceCents: 300},
		{ID: uuid.New(), CropListingID: &listingID, Quantity: 1, UnitPriceCents: 900},
		{ID: uuid.New(), Quantity: 1},
	}

	lines := LinesFromCart(items)
	require.Len(t, lines, 3)
	assert.Equal(t, catalog.ProductRef(productID), lines[0].Ref)
	assert.Equal(t, int64(600), lines[0].Subtotal())
	assert.Equal(t, catalog.CropListingRef(listingID), lines[1].Ref)
	assert.True(t, lines[2].Ref.IsZero())
}
