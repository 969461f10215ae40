//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/order"
	"github.com/xenking/kart-checkout/internal/domain/preference"
	"github.com/xenking/kart-checkout/internal/domain/pricing"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "checkout",
				"POSTGRES_PASSWORD": "checkout",
				"POSTGRES_DB":       "checkout",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://checkout:checkout@%s:%s/checkout?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestRepositories(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	t.Run("Cart", func(t *testing.T) {
		repo := NewCartRepository(pool)

		_, err := repo.Get(ctx, "missing")
		require.ErrorIs(t, err, cart.ErrNotFound)

		line := pricing.LineItem{
			ProductID:     1,
			ProductName:   "Burger",
			UnitPrice:     decimal.RequireFromString("20"),
			Quantity:      1,
			Modifications: []pricing.IngredientModification{{IngredientID: 10, Delta: 1}},
			Extras:        []pricing.ExtraSelection{{IngredientID: 20, Quantity: 2, MinQuantity: 1}},
			Additional:    decimal.RequireFromString("1.50"),
			Total:         decimal.RequireFromString("21.50"),
		}
		saved, err := repo.Update(ctx, "s1", func(c cart.Cart) (cart.Cart, error) {
			assert.Empty(t, c.Items, "missing cart starts empty")
			return c.Add(line), nil
		})
		require.NoError(t, err)
		require.Len(t, saved.Items, 1)

		got, err := repo.Get(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "Burger", got.Items[0].ProductName)
		assert.Equal(t, 2, got.Items[0].Extras[0].Quantity)
		assert.True(t, decimal.RequireFromString("21.50").Equal(got.Subtotal()))

		_, err = repo.Update(ctx, "s1", func(c cart.Cart) (cart.Cart, error) {
			return c.Remove(9)
		})
		require.ErrorIs(t, err, cart.ErrItemNotFound)
		got, err = repo.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, got.Items, 1, "failed update leaves the cart as is")

		taken, err := repo.Take(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, taken.Items, 1)
		_, err = repo.Take(ctx, "s1")
		require.ErrorIs(t, err, cart.ErrNotFound)

		require.NoError(t, repo.Delete(ctx, "s1"))
		_, err = repo.Get(ctx, "s1")
		require.ErrorIs(t, err, cart.ErrNotFound)
	})

	t.Run("CartConcurrentUpdates", func(t *testing.T) {
		repo := NewCartRepository(pool)
		const n = 20

		var wg sync.WaitGroup
		for i := range n {
			wg.Go(func() {
				_, err := repo.Update(ctx, "busy", func(c cart.Cart) (cart.Cart, error) {
					return c.Add(pricing.LineItem{ProductID: int64(i + 1), Quantity: 1}), nil
				})
				assert.NoError(t, err)
			})
		}
		wg.Wait()

		got, err := repo.Get(ctx, "busy")
		require.NoError(t, err)
		assert.Len(t, got.Items, n)

		var claimed atomic.Int32
		for range 5 {
			wg.Go(func() {
				if _, err := repo.Take(ctx, "busy"); err == nil {
					claimed.Add(1)
				} else {
					assert.ErrorIs(t, err, cart.ErrNotFound)
				}
			})
		}
		wg.Wait()
		assert.Equal(t, int32(1), claimed.Load())
	})

	t.Run("Preferences", func(t *testing.T) {
		repo := NewPreferenceRepository(pool)

		p, err := repo.Get(ctx, "s2")
		require.NoError(t, err)
		assert.Zero(t, p.AddressID)
		assert.Empty(t, p.PaymentMethod)

		require.NoError(t, repo.Save(ctx, &preference.Preferences{
			SessionID:     "s2",
			AddressID:     7,
			PaymentMethod: order.PaymentCash,
		}))
		p, err = repo.Get(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, int64(7), p.AddressID)
		assert.Equal(t, order.PaymentCash, p.PaymentMethod)
	})

	t.Run("History", func(t *testing.T) {
		repo := NewHistoryRepository(pool)
		now := time.Now().UTC().Truncate(time.Second)

		for i, id := range []int64{100, 101} {
			require.NoError(t, repo.Record(ctx, &order.Submission{
				OrderID:       id,
				SessionID:     "s3",
				Total:         decimal.RequireFromString("24.50"),
				PaymentMethod: order.PaymentPix,
				SubmittedAt:   now.Add(time.Duration(i) * time.Minute),
			}))
		}
		// Duplicate order IDs are ignored.
		require.NoError(t, repo.Record(ctx, &order.Submission{
			OrderID: 100, SessionID: "s3", Total: decimal.Zero, PaymentMethod: order.PaymentPix, SubmittedAt: now,
		}))

		got, err := repo.List(ctx, "s3", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(101), got[0].OrderID)
		assert.True(t, decimal.RequireFromString("24.50").Equal(got[1].Total))
	})
}
