// Package dbtest opens throwaway sqlite databases for repository tests.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/harvest-fulfillment/pkg/db"
	"github.com/angelmondragon/harvest-fulfillment/pkg/db/models"
	"github.com/angelmondragon/harvest-fulfillment/pkg/enums"
)

// New returns a client over a private in-memory database with every model migrated.
func New(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:hv_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...))
	return db.NewFromGorm(conn)
}

// SeedUser inserts a user with the given display name.
func SeedUser(t testing.TB, client *db.Client, name string) models.User {
	t.Helper()
	user := models.User{
		ID:          uuid.New(),
		Email:       fmt.Sprintf("%s-%s@harvest.test", name, uuid.NewString()[:8]),
		DisplayName: name,
	}
	require.NoError(t, client.DB().Create(&user).Error)
	return user
}

// SeedProduct inserts an active product for seller.
func SeedProduct(t testing.TB, client *db.Client, sellerID uuid.UUID, name string, priceCents int64, stock int) models.Product {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Name:       name,
		PriceCents: priceCents,
		Stock:      stock,
		IsActive:   true,
	}
	require.NoError(t, client.DB().Create(&product).Error)
	return product
}

// SeedCropListing inserts a listed crop with one active listing for seller.
func SeedCropListing(t testing.TB, client *db.Client, sellerID uuid.UUID, title string, priceCents int64, qty int) (models.Crop, models.CropListing) {
	t.Helper()
	crop := models.Crop{ID: uuid.New(), FarmerID: sellerID, Name: title, Status: enums.CropStatusListed}
	require.NoError(t, client.DB().Create(&crop).Error)
	listing := SeedListingForCrop(t, client, crop, title, priceCents, qty)
	return crop, listing
}

// SeedListingForCrop adds another listing to an existing crop.
func SeedListingForCrop(t testing.TB, client *db.Client, crop models.Crop, title string, priceCents int64, qty int) models.CropListing {
	t.Helper()
	listing := models.CropListing{
		ID:             uuid.New(),
		CropID:         crop.ID,
		SellerID:       crop.FarmerID,
		Title:          title,
		UnitPriceCents: priceCents,
		AvailableQty:   qty,
		IsActive:       true,
	}
	require.NoError(t, client.DB().Create(&listing).Error)
	return listing
}

// SeedCartItem inserts a cart line referencing a product or crop listing.
func SeedCartItem(t testing.TB, client *db.Client, buyerID uuid.UUID, productID, cropListingID *uuid.UUID, qty int, unitPriceCents int64) models.CartItem {
	t.Helper()
	item := models.CartItem{
		ID:             uuid.New(),
		BuyerID:        buyerID,
		ProductID:      productID,
		CropListingID:  cropListingID,
		Quantity:       qty,
		UnitPriceCents: unitPriceCents,
	}
	require.NoError(t, client.DB().Create(&item).Error)
	return item
}
