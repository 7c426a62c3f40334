package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory SQLite database with the schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := database.Open(database.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func pendingOrder(userID, txRef string, total float64) *models.Order {
	return &models.Order{
		UserID:        userID,
		TxRef:         txRef,
		TotalAmount:   total,
		Currency:      "ETB",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		CustomerEmail: "buyer@example.com",
		Items: []models.OrderItem{
			{ProductID: "prod-1", Quantity: 2, Price: total / 2},
		},
	}
}

// orderRepoFactories lets the same contract run against both implementations.
func orderRepoFactories() map[string]func(t *testing.T) repositories.OrderRepository {
	return map[string]func(t *testing.T) repositories.OrderRepository{
		"gorm": func(t *testing.T) repositories.OrderRepository {
			return repositories.NewGORMOrderRepository(newTestDB(t))
		},
		"memory": func(t *testing.T) repositories.OrderRepository {
			return repositories.NewMockOrderRepository()
		},
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	for name, newRepo := range orderRepoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			order := pendingOrder("user-1", "ECOM-abc", 500)
			require.NoError(t, repo.Create(ctx, order))
			assert.NotEmpty(t, order.ID)

			byRef, err := repo.GetByTxRef(ctx, "ECOM-abc")
			require.NoError(t, err)
			assert.Equal(t, order.ID, byRef.ID)
			assert.Equal(t, models.OrderStatusPending, byRef.Status)
			require.Len(t, byRef.Items, 1)
			assert.Equal(t, 2, byRef.Items[0].Quantity)

			byID, err := repo.GetByID(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, "ECOM-abc", byID.TxRef)

			_, err = repo.GetByTxRef(ctx, "ECOM-missing")
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

func TestOrderRepository_TxRefIsUnique(t *testing.T) {
	for name, newRepo := range orderRepoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			require.NoError(t, repo.Create(ctx, pendingOrder("user-1", "ECOM-dup", 100)))
			assert.Error(t, repo.Create(ctx, pendingOrder("user-2", "ECOM-dup", 200)))
		})
	}
}

func TestOrderRepository_TransitionFromPending(t *testing.T) {
	for name, newRepo := range orderRepoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("user-1", "ECOM-cas", 100)))

			changed, err := repo.TransitionFromPending(ctx, "ECOM-cas", models.OrderStatusCompleted, models.PaymentStatusPaid)
			require.NoError(t, err)
			assert.True(t, changed)

			// A second transition, in either direction, is a no-op.
			changed, err = repo.TransitionFromPending(ctx, "ECOM-cas", models.OrderStatusFailed, models.PaymentStatusFailed)
			require.NoError(t, err)
			assert.False(t, changed)

			order, err := repo.GetByTxRef(ctx, "ECOM-cas")
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCompleted, order.Status)
			assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)

			changed, err = repo.TransitionFromPending(ctx, "ECOM-unknown", models.OrderStatusCompleted, models.PaymentStatusPaid)
			require.NoError(t, err)
			assert.False(t, changed)

			_, err = repo.TransitionFromPending(ctx, "ECOM-cas", models.OrderStatusPending, models.PaymentStatusPending)
			assert.Error(t, err)
		})
	}
}

func TestOrderRepository_ConcurrentTransitionsHaveOneWinner(t *testing.T) {
	for name, newRepo := range orderRepoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, pendingOrder("user-1", "ECOM-race", 100)))

			var winners int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					changed, err := repo.TransitionFromPending(ctx, "ECOM-race", models.OrderStatusCompleted, models.PaymentStatusPaid)
					if err == nil && changed {
						atomic.AddInt32(&winners, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), winners)
		})
	}
}

func TestOrderRepository_ListingsAndStats(t *testing.T) {
	for name, newRepo := range orderRepoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			old := pendingOrder("user-1", "ECOM-old", 300)
			old.CreatedAt = time.Now().Add(-time.Hour)
			require.NoError(t, repo.Create(ctx, old))
			require.NoError(t, repo.Create(ctx, pendingOrder("user-1", "ECOM-paid", 2500)))
			require.NoError(t, repo.Create(ctx, pendingOrder("user-2", "ECOM-other", 50)))

			_, err := repo.TransitionFromPending(ctx, "ECOM-paid", models.OrderStatusCompleted, models.PaymentStatusPaid)
			require.NoError(t, err)

			mine, err := repo.GetByUser(ctx, "user-1")
			require.NoError(t, err)
			assert.Len(t, mine, 2)

			all, err := repo.GetAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 3)

			stats, err := repo.StatsForUser(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, int64(2), stats.TotalOrders)
			assert.Equal(t, int64(1), stats.CompletedOrders)
			assert.InDelta(t, 2500, stats.TotalSpent, 0.001)

			stale, err := repo.ListPendingBefore(ctx, time.Now().Add(-30*time.Minute), repositories.PendingCursor{}, 10)
			require.NoError(t, err)
			require.Len(t, stale, 1)
			assert.Equal(t, "ECOM-old", stale[0].TxRef)
		})
	}
}

func TestOrderRepository_ListPendingBeforePagesWithCursor(t *testing.T) {
	for name, newRepo := range orderRepoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			// Two orders share a timestamp so the tx_ref tie-break is exercised.
			base := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
			for i, created := range []time.Time{base, base.Add(time.Minute), base.Add(time.Minute), base.Add(2 * time.Minute)} {
				order := pendingOrder("user-1", fmt.Sprintf("ECOM-page-%d", i), 10)
				order.CreatedAt = created
				require.NoError(t, repo.Create(ctx, order))
			}
			done := pendingOrder("user-1", "ECOM-page-done", 10)
			done.CreatedAt = base
			require.NoError(t, repo.Create(ctx, done))
			_, err := repo.TransitionFromPending(ctx, "ECOM-page-done", models.OrderStatusFailed, models.PaymentStatusFailed)
			require.NoError(t, err)

			cutoff := time.Now().Add(-time.Hour)
			var seen []string
			cursor := repositories.PendingCursor{}
			for page := 0; page < 5; page++ {
				batch, err := repo.ListPendingBefore(ctx, cutoff, cursor, 3)
				require.NoError(t, err)
				for _, o := range batch {
					seen = append(seen, o.TxRef)
				}
				if len(batch) < 3 {
					break
				}
				cursor = repositories.CursorAt(batch[len(batch)-1])
			}
			assert.Equal(t, []string{"ECOM-page-0", "ECOM-page-1", "ECOM-page-2", "ECOM-page-3"}, seen)
		})
	}
}
