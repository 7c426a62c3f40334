package database_test

import (
	"context"
	"fmt"
	"testing"

	"storefront/internal/database"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteMigratesSchema(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(database.DriverSQLite, dsn)
	require.NoError(t, err)
	defer database.Close(db)

	for _, model := range []interface{}{&models.User{}, &models.Product{}, &models.Order{}, &models.OrderItem{}, &models.Coupon{}, &models.CartItem{}} {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
	assert.True(t, db.Migrator().HasIndex(&models.Order{}, "TxRef"))

	health := database.Health(context.Background(), db)
	assert.Equal(t, "up", health["status"])
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := database.Open("oracle", "whatever")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}
