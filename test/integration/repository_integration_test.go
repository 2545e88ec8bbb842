package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"bloomkart/internal/model"
	"bloomkart/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(productIDs []int64) (*model.Order, []model.OrderItem, model.StatusChange) {
	order := &model.Order{
		CustomerName:    "Rosa Bell",
		CustomerEmail:   "rosa@example.com",
		CustomerPhone:   "+44 20 7946 0958",
		DeliveryAddress: "1 Petal Lane",
		DeliveryCity:    "London",
		Status:          model.StatusPending,
		TotalAmount:     decimal.RequireFromString("51.98"),
	}
	items := []model.OrderItem{
		{
			ProductID:   productIDs[0],
			ProductName: "Red Rose Bouquet",
			UnitPrice:   decimal.RequireFromString("25.99"),
			Quantity:    2,
			Subtotal:    decimal.RequireFromString("51.98"),
		},
	}
	initial := model.StatusChange{NewStatus: model.StatusPending, Notes: "order placed"}
	return order, items, initial
}

func TestProductRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	logger := zerolog.Nop()
	repo := repository.NewProductRepository(testDB.Pool, logger)

	ctx := context.Background()

	t.Run("GetAll returns only active products", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedProducts(t, testDB.Pool)

		products, err := repo.GetAll(ctx, 10, 0)
		require.NoError(t, err)
		assert.Len(t, products, 4)
		for _, p := range products {
			assert.True(t, p.Active)
		}
	})

	t.Run("GetByID returns nil for unknown product", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		p, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("GetByIDs fetches a batch in one read", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		products, err := repo.GetByIDs(ctx, []int64{ids[0], ids[1], 999999})
		require.NoError(t, err)
		assert.Len(t, products, 2)
	})
}

func TestOrderRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	logger := zerolog.Nop()
	repo := repository.NewOrderRepository(testDB.Pool, logger)

	ctx := context.Background()

	t.Run("Create persists header, items and initial history atomically", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		created, err := repo.Create(ctx, order, items, initial)
		require.NoError(t, err)
		require.NotZero(t, created.ID)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("51.98")))
		require.Len(t, got.Items, 1)
		assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("25.99")))
		require.Len(t, got.History, 1)
		assert.Nil(t, got.History[0].PreviousStatus)
		assert.Equal(t, model.StatusPending, got.History[0].NewStatus)
	})

	t.Run("Create rolls back completely when an item insert fails", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		// Second line references a product that does not exist, violating the
		// foreign key after the header was already inserted.
		items = append(items, model.OrderItem{
			ProductID:   999999,
			ProductName: "Ghost Bouquet",
			UnitPrice:   decimal.RequireFromString("1.00"),
			Quantity:    1,
			Subtotal:    decimal.RequireFromString("1.00"),
		})

		_, err := repo.Create(ctx, order, items, initial)
		require.Error(t, err)

		var headerCount int
		require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&headerCount))
		assert.Zero(t, headerCount, "failed create must leave no order header behind")

		var historyCount int
		require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM order_status_history").Scan(&historyCount))
		assert.Zero(t, historyCount)
	})

	t.Run("GetByID returns nil for unknown order", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		got, err := repo.GetByID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ApplyTransition moves status and appends history", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		created, err := repo.Create(ctx, order, items, initial)
		require.NoError(t, err)

		prev := model.StatusPending
		updated, err := repo.ApplyTransition(ctx, created.ID, model.StatusPending, model.StatusChange{
			PreviousStatus: &prev,
			NewStatus:      model.StatusConfirmed,
			Notes:          "payment received",
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, updated.Status)

		history, err := repo.GetStatusHistory(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, model.StatusPending, history[0].NewStatus)
		assert.Equal(t, model.StatusConfirmed, history[1].NewStatus)
		require.NotNil(t, history[1].PreviousStatus)
		assert.Equal(t, model.StatusPending, *history[1].PreviousStatus)
	})

	t.Run("ApplyTransition with stale expected status writes nothing", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		created, err := repo.Create(ctx, order, items, initial)
		require.NoError(t, err)

		prev := model.StatusConfirmed
		_, err = repo.ApplyTransition(ctx, created.ID, model.StatusConfirmed, model.StatusChange{
			PreviousStatus: &prev,
			NewStatus:      model.StatusProcessing,
		})
		require.ErrorIs(t, err, repository.ErrStaleStatus)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status, "guard failure must not change status")
		assert.Len(t, got.History, 1, "guard failure must not append history")
	})

	t.Run("concurrent transitions produce exactly one winner", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		created, err := repo.Create(ctx, order, items, initial)
		require.NoError(t, err)

		const racers = 8
		var wg sync.WaitGroup
		errs := make([]error, racers)
		prev := model.StatusPending

		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.ApplyTransition(ctx, created.ID, model.StatusPending, model.StatusChange{
					PreviousStatus: &prev,
					NewStatus:      model.StatusConfirmed,
				})
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, repository.ErrStaleStatus)
			}
		}
		assert.Equal(t, 1, winners)

		history, err := repo.GetStatusHistory(ctx, created.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2, "losers must not append history rows")
	})

	t.Run("List filters by status and counts with the same predicate", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		for i := 0; i < 3; i++ {
			order, items, initial := newTestOrder(ids)
			created, err := repo.Create(ctx, order, items, initial)
			require.NoError(t, err)

			if i == 0 {
				prev := model.StatusPending
				_, err = repo.ApplyTransition(ctx, created.ID, model.StatusPending, model.StatusChange{
					PreviousStatus: &prev,
					NewStatus:      model.StatusConfirmed,
				})
				require.NoError(t, err)
			}
		}

		confirmed := model.StatusConfirmed
		orders, total, err := repo.List(ctx, model.ListOrdersFilter{Status: &confirmed}, model.Pagination{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, orders, 1)
		assert.Equal(t, model.StatusConfirmed, orders[0].Status)

		orders, total, err = repo.List(ctx, model.ListOrdersFilter{}, model.Pagination{Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, orders, 2, "page size caps the rows while total counts everything")
	})

	t.Run("List filters by customer and date range", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		_, err := repo.Create(ctx, order, items, initial)
		require.NoError(t, err)

		orders, total, err := repo.List(ctx, model.ListOrdersFilter{Customer: "rosa"}, model.Pagination{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, orders, 1)

		past := time.Now().Add(-time.Hour)
		future := time.Now().Add(time.Hour)
		_, total, err = repo.List(ctx, model.ListOrdersFilter{From: &past, To: &future}, model.Pagination{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)

		longAgo := time.Now().Add(-48 * time.Hour)
		stillAgo := time.Now().Add(-24 * time.Hour)
		_, total, err = repo.List(ctx, model.ListOrdersFilter{From: &longAgo, To: &stillAgo}, model.Pagination{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("UpdateDetails leaves status and totals alone", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		created, err := repo.Create(ctx, order, items, initial)
		require.NoError(t, err)

		created.CustomerName = "Rosa B. Updated"
		created.DeliveryCity = "Brighton"
		require.NoError(t, repo.UpdateDetails(ctx, created))

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Rosa B. Updated", got.CustomerName)
		assert.Equal(t, "Brighton", got.DeliveryCity)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("51.98")))
	})
}

func TestPaymentRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	logger := zerolog.Nop()
	orderRepo := repository.NewOrderRepository(testDB.Pool, logger)
	paymentRepo := repository.NewPaymentRepository(testDB.Pool, logger)

	ctx := context.Background()

	t.Run("Add and verify a payment", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		created, err := orderRepo.Create(ctx, order, items, initial)
		require.NoError(t, err)

		payment, err := paymentRepo.Add(ctx, &model.Payment{
			OrderID:  created.ID,
			Amount:   decimal.RequireFromString("51.98"),
			Method:   "bank_transfer",
			Status:   model.PaymentPending,
			ProofKey: "orders/1/proof.png",
		})
		require.NoError(t, err)
		require.NotZero(t, payment.ID)
		assert.Nil(t, payment.VerifiedAt)

		verified, err := paymentRepo.SetStatus(ctx, payment.ID, model.PaymentVerified)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentVerified, verified.Status)
		assert.NotNil(t, verified.VerifiedAt)
	})

	t.Run("SetStatus returns nil for unknown payment", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		p, err := paymentRepo.SetStatus(ctx, 999999, model.PaymentRejected)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("payments surface on the order read", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order, items, initial := newTestOrder(ids)
		created, err := orderRepo.Create(ctx, order, items, initial)
		require.NoError(t, err)

		_, err = paymentRepo.Add(ctx, &model.Payment{
			OrderID: created.ID,
			Amount:  decimal.RequireFromString("20.00"),
			Method:  "cash",
			Status:  model.PaymentPending,
		})
		require.NoError(t, err)

		got, err := orderRepo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, got.Payments, 1)
		assert.Equal(t, "cash", got.Payments[0].Method)
	})
}
