package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// LineRef is the tagged product-or-listing reference of a line.
type LineRef = catalog.Ref

// Line is one purchasable unit handed to fulfillment: a stored cart line, or a
// synthetic line built from a direct purchase.
type Line struct {
	// ID is the cart line id; uuid.Nil for synthetic lines.
	ID             uuid.UUID
	Ref            LineRef
	Quantity       int
	UnitPriceCents int64
	// SellerOverride wins over the seller resolved from the catalog.
	SellerOverride *uuid.UUID
}

// Subtotal is the stored unit price times quantity.
func (l Line) Subtotal() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// ResolvedLine is a Line with its seller and display name attached.
type ResolvedLine struct {
	Line
	SellerID uuid.UUID
	ItemName string
}

// SellerPartition groups the lines of one seller into one prospective order.
type SellerPartition struct {
	SellerID   uuid.UUID
	SellerName string
	OrderType  enums.OrderType
	Lines      []ResolvedLine
	TotalCents int64
}

// CartLineIDs returns the ids of the stored cart lines in the partition.
func (p SellerPartition) CartLineIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Lines))
	for _, line := range p.Lines {
		if line.ID != uuid.Nil {
			ids = append(ids, line.ID)
		}
	}
	return ids
}

// Partition groups lines by seller. Partitions come out in first-seen seller
// order and keep line order within each seller. Lines whose seller cannot be
// resolved are dropped and reported.
func Partition(ctx context.Context, resolver catalog.Resolver, lines []Line) ([]SellerPartition, []*PartitionWarning) {
	var (
		partitions []SellerPartition
		warnings   []*PartitionWarning
		index      = map[uuid.UUID]int{}
	)

	for _, line := range lines {
		resolved, warning := resolveLine(ctx, resolver, line)
		if warning != nil {
			warnings = append(warnings, warning)
			continue
		}

		pos, ok := index[resolved.SellerID]
		if !ok {
			partitions = append(partitions, SellerPartition{
				SellerID:   resolved.SellerID,
				SellerName: resolved.sellerName,
				OrderType:  resolved.Ref.Kind.OrderType(),
			})
			pos = len(partitions) - 1
			index[resolved.SellerID] = pos
		}
		partitions[pos].Lines = append(partitions[pos].Lines, resolved.ResolvedLine)
		partitions[pos].TotalCents += resolved.Subtotal()
	}
	return partitions, warnings
}

type resolvedWithName struct {
	ResolvedLine
	sellerName string
}

func resolveLine(ctx context.Context, resolver catalog.Resolver, line Line) (resolvedWithName, *PartitionWarning) {
	if line.Ref.IsZero() {
		return resolvedWithName{}, newPartitionWarning(line, "line references no catalog entity", nil)
	}
	if line.Quantity <= 0 {
		return resolvedWithName{}, newPartitionWarning(line, fmt.Sprintf("invalid quantity %d", line.Quantity), nil)
	}

	resolution, err := resolver.Resolve(ctx, line.Ref)
	override := line.SellerOverride != nil && *line.SellerOverride != uuid.Nil
	if err != nil && !override {
		reason := "seller lookup failed"
		if errors.Is(err, catalog.ErrUnresolvable) {
			reason = "seller not resolvable"
		}
		return resolvedWithName{}, newPartitionWarning(line, reason, err)
	}

	out := resolvedWithName{
		ResolvedLine: ResolvedLine{
			Line:     line,
			SellerID: resolution.SellerID,
			ItemName: resolution.ItemName,
		},
		sellerName: resolution.SellerName,
	}
	if override && *line.SellerOverride != resolution.SellerID {
		out.SellerID = *line.SellerOverride
		out.sellerName = "Seller"
	}
	if out.ItemName == "" {
		out.ItemName = defaultItemName(line.Ref.Kind)
	}
	return out, nil
}

func defaultItemName(kind enums.LineKind) string {
	switch kind {
	case enums.LineKindCropListing:
		return "Crop listing"
	case enums.LineKindEquipment:
		return "Equipment"
	default:
		return "Product"
	}
}

// LinesFromCart converts stored cart lines into fulfillment lines.
func LinesFromCart(items []models.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		// a malformed line keeps a zero ref and is reported by Partition
		ref, _ := catalog.RefFromIDs(item.ProductID, item.CropListingID)
		lines = append(lines, Line{
			ID:             item.ID,
			Ref:            ref,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return lines
}
