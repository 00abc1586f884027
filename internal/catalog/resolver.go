package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// ErrUnresolvable reports a line whose seller cannot be determined.
var ErrUnresolvable = errors.New("seller not resolvable")

const defaultSellerName = "Seller"

// Resolution is what partitioning needs to know about a referenced entity.
type Resolution struct {
	SellerID   uuid.UUID
	SellerName string
	ItemName   string
	Kind       enums.LineKind
}

// Resolver looks up the seller behind a catalog reference.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (Resolution, error)
}

type resolverImpl struct {
	db *gorm.DB
}

// NewResolver returns a Resolver backed by the catalog tables.
func NewResolver(db *gorm.DB) Resolver {
	return &resolverImpl{db: db}
}

type resolvedRow struct {
	SellerID   uuid.UUID
	SellerName *string
	ItemName   string
}

func (r *resolverImpl) Resolve(ctx context.Context, ref Ref) (Resolution, error) {
	if ref.IsZero() {
		return Resolution{}, fmt.Errorf("%w: empty reference", ErrUnresolvable)
	}

	var query *gorm.DB
	switch ref.Kind {
	case enums.LineKindProduct:
		query = r.db.WithContext(ctx).
			Table("products").
			Select("products.seller_id AS seller_id, users.display_name AS seller_name, products.name AS item_name").
			Joins("LEFT JOIN users ON users.id = products.seller_id").
			Where("products.id = ?", ref.ID)
	case enums.LineKindCropListing:
		query = r.db.WithContext(ctx).
			Table("crop_listings").
			Select("crop_listings.seller_id AS seller_id, users.display_name AS seller_name, crop_listings.title AS item_name").
			Joins("LEFT JOIN users ON users.id = crop_listings.seller_id").
			Where("crop_listings.id = ?", ref.ID)
	default:
		return Resolution{}, fmt.Errorf("%w: unsupported kind %q", ErrUnresolvable, ref.Kind)
	}

	var rows []resolvedRow
	if err := query.Limit(1).Scan(&rows).Error; err != nil {
		return Resolution{}, err
	}
	if len(rows) == 0 || rows[0].SellerID == uuid.Nil {
		return Resolution{}, fmt.Errorf("%w: %s", ErrUnresolvable, ref)
	}

	name := defaultSellerName
	if rows[0].SellerName != nil && strings.TrimSpace(*rows[0].SellerName) != "" {
		name = strings.TrimSpace(*rows[0].SellerName)
	}
	return Resolution{
		SellerID:   rows[0].SellerID,
		SellerName: name,
		ItemName:   rows[0].ItemName,
		Kind:       ref.Kind,
	}, nil
}
