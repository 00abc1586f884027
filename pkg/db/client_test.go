package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:dbclient_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	assert.Equal(t, "sqlite", client.Dialect())
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&testModel{Name: "dup"}).Error)
	err := db.Create(&testModel{Name: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "processed_events_pkey"}
	wrapped := fmt.Errorf("insert: %w", pgErr)
	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "processed_events_pkey"))
	assert.False(t, IsUniqueViolation(wrapped, "orders_pkey"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
