package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, req services.ReconcileRequest) (*services.ReconcileResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReconcileResult), args.Error(1)
}

func seedPending(t *testing.T, repo repositories.OrderRepository, txRef string, age time.Duration) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.Order{
		UserID:        "user-1",
		TxRef:         txRef,
		TotalAmount:   100,
		Currency:      "ETB",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		CreatedAt:     time.Now().Add(-age),
	}))
}

func TestPendingSweeper_SweepReconcilesStaleOrders(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	seedPending(t, repo, "ECOM-stale", 2*time.Hour)
	seedPending(t, repo, "ECOM-stuck", time.Hour)
	seedPending(t, repo, "ECOM-fresh", time.Minute)

	reconciler := new(MockReconciler)
	reconciler.On("Reconcile", services.ReconcileRequest{TxRef: "ECOM-stale", Source: services.SourceSweeper}).
		Return(&services.ReconcileResult{Finalized: true, Transitioned: true}, nil)
	reconciler.On("Reconcile", services.ReconcileRequest{TxRef: "ECOM-stuck", Source: services.SourceSweeper}).
		Return(nil, errors.New("provider unavailable"))

	sweeper := NewPendingSweeper(repo, reconciler, time.Minute, 30*time.Minute)
	finalized, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, finalized)
	reconciler.AssertExpectations(t)
	reconciler.AssertNotCalled(t, "Reconcile", services.ReconcileRequest{TxRef: "ECOM-fresh", Source: services.SourceSweeper})
}

func TestPendingSweeper_AbandonedBacklogDoesNotStarveNewerOrders(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	for i := 0; i < sweepBatchSize; i++ {
		seedPending(t, repo, fmt.Sprintf("ECOM-abandoned-%03d", i), 3*time.Hour-time.Duration(i)*time.Second)
	}
	seedPending(t, repo, "ECOM-paid", time.Hour)

	calls := make(map[string]int)
	reconciler := new(MockReconciler)
	reconciler.On("Reconcile", services.ReconcileRequest{TxRef: "ECOM-paid", Source: services.SourceSweeper}).
		Run(func(args mock.Arguments) { calls["ECOM-paid"]++ }).
		Return(&services.ReconcileResult{Finalized: true, Transitioned: true}, nil)
	reconciler.On("Reconcile", mock.Anything).
		Run(func(args mock.Arguments) { calls[args.Get(0).(services.ReconcileRequest).TxRef]++ }).
		Return(&services.ReconcileResult{Finalized: false}, nil)

	sweeper := NewPendingSweeper(repo, reconciler, time.Minute, 30*time.Minute)
	ctx := context.Background()

	finalized, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, finalized)
	assert.Zero(t, calls["ECOM-paid"])

	finalized, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, finalized)
	assert.Equal(t, 1, calls["ECOM-paid"])

	// The backlog is exhausted, so the next sweep starts over.
	_, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls["ECOM-abandoned-000"])
}

func TestPendingSweeper_DisabledWithoutInterval(t *testing.T) {
	sweeper := NewPendingSweeper(repositories.NewMockOrderRepository(), new(MockReconciler), 0, time.Minute)
	assert.False(t, sweeper.Enabled())

	done := make(chan struct{})
	go func() {
		sweeper.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when disabled")
	}
}

func TestPendingSweeper_RunStopsOnCancel(t *testing.T) {
	repo := repositories.NewMockOrderRepository()
	seedPending(t, repo, "ECOM-stale", time.Hour)

	reconciler := new(MockReconciler)
	swept := make(chan struct{}, 1)
	reconciler.On("Reconcile", mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case swept <- struct{}{}:
			default:
			}
		}).
		Return(&services.ReconcileResult{Finalized: false}, nil)

	sweeper := NewPendingSweeper(repo, reconciler, 10*time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
