package inventory

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/harvest-fulfillment/internal/catalog"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvest-fulfillment/pkg/errors"
)

// Result describes the stock left after a decrement.
type Result struct {
	Remaining   int
	Deactivated bool
	CropSold    bool
}

// Repository applies fulfillment decrements to catalog stock. Every call runs
// on the transaction it is given.
type Repository interface {
	Decrement(ctx context.Context, tx *gorm.DB, ref catalog.Ref, qty int) (Result, error)
}

type repository struct {
	now func() time.Time
}

// NewRepository returns the SQL-backed inventory repository.
func NewRepository() Repository {
	return &repository{now: time.Now}
}

// Decrement floors stock at zero in a single conditional UPDATE so concurrent
// fulfillments against the same row never lose an update.
func (r *repository) Decrement(ctx context.Context, tx *gorm.DB, ref catalog.Ref, qty int) (Result, error) {
	if tx == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeInternal, "inventory decrement requires a transaction")
	}
	if qty <= 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	switch ref.Kind {
	case enums.LineKindProduct:
		return r.decrementProduct(ctx, tx, ref, qty)
	case enums.LineKindCropListing:
		return r.decrementListing(ctx, tx, ref, qty)
	default:
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("kind %q has no inventory", ref.Kind))
	}
}

func (r *repository) decrementProduct(ctx context.Context, tx *gorm.DB, ref catalog.Ref, qty int) (Result, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE products
		    SET stock = CASE WHEN stock > ? THEN stock - ? ELSE 0 END,
		        updated_at = ?
		  WHERE id = ?`,
		qty, qty, r.now().UTC(), ref.ID,
	)
	if res.Error != nil {
		return Result{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", ref.ID))
	}

	var product models.Product
	if err := tx.WithContext(ctx).Select("stock").Where("id = ?", ref.ID).Take(&product).Error; err != nil {
		return Result{}, err
	}
	return Result{Remaining: product.Stock}, nil
}

func (r *repository) decrementListing(ctx context.Context, tx *gorm.DB, ref catalog.Ref, qty int) (Result, error) {
	now := r.now().UTC()
	// SET expressions all read the pre-update row, so is_active is decided
	// against the same quantity the decrement uses.
	res := tx.WithContext(ctx).Exec(
		`UPDATE crop_listings
		    SET available_qty = CASE WHEN available_qty > ? THEN available_qty - ? ELSE 0 END,
		        is_active = CASE WHEN available_qty > ? THEN is_active ELSE ? END,
		        updated_at = ?
		  WHERE id = ?`,
		qty, qty, qty, false, now, ref.ID,
	)
	if res.Error != nil {
		return Result{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("crop listing %s not found", ref.ID))
	}

	var listing models.CropListing
	if err := tx.WithContext(ctx).
		Select("crop_id", "available_qty", "is_active").
		Where("id = ?", ref.ID).
		Take(&listing).Error; err != nil {
		return Result{}, err
	}

	result := Result{Remaining: listing.AvailableQty, Deactivated: !listing.IsActive}
	if listing.AvailableQty > 0 {
		return result, nil
	}

	sold := tx.WithContext(ctx).
		Model(&models.Crop{}).
		Where("id = ? AND status <> ?", listing.CropID, enums.CropStatusSold).
		Where("NOT EXISTS (SELECT 1 FROM crop_listings WHERE crop_id = ? AND available_qty > 0)", listing.CropID).
		Updates(map[string]any{"status": enums.CropStatusSold, "updated_at": now})
	if sold.Error != nil {
		return Result{}, sold.Error
	}
	result.CropSold = sold.RowsAffected > 0
	return result, nil
}
