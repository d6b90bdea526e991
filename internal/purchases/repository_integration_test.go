package purchases

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/authz"
	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

// TestRepository_ConcurrentPurchases runs the engine against Postgres row locks.
func TestRepository_ConcurrentPurchases(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 16}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var userID, eventID, poolID, dedicatedID, sharedID uuid.UUID
	email := "it-" + uuid.NewString() + "@example.com"
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, 'x', 'Integration', 'seller_admin') RETURNING id`, email).Scan(&userID); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM events WHERE id = $1`, eventID)
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})
	if err := pool.QueryRow(ctx, `INSERT INTO events (name, date, created_by) VALUES ('IT', NOW(), $1) RETURNING id`, userID).
		Scan(&eventID); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO capacity_pools (event_id, name, total_capacity) VALUES ($1, 'p', 4) RETURNING id`, eventID).
		Scan(&poolID); err != nil {
		t.Fatalf("insert pool: %v", err)
	}
	const ticketQ = `INSERT INTO tickets (event_id, name, price_cents, capacity_type, dedicated_capacity,
			shared_capacity_pool_id, sale_start_date, sale_end_date)
		VALUES ($1, $2, 1000, $3, $4, $5, NOW() - INTERVAL '1 hour', NOW() + INTERVAL '1 hour') RETURNING id`
	if err := pool.QueryRow(ctx, ticketQ, eventID, "dedicated", "dedicated", 5, nil).Scan(&dedicatedID); err != nil {
		t.Fatalf("insert dedicated ticket: %v", err)
	}
	if err := pool.QueryRow(ctx, ticketQ, eventID, "shared", "shared", nil, poolID).Scan(&sharedID); err != nil {
		t.Fatalf("insert shared ticket: %v", err)
	}

	owner := authz.Principal{UserID: userID, Role: models.RoleSellerAdmin}
	svc := NewService(NewRepository(pool), authz.NewGate(eventMap{eventID: {ID: eventID, CreatedBy: userID}}), nil, nil, nil)

	run := func(ticketID uuid.UUID) int {
		var wg sync.WaitGroup
		var mu sync.Mutex
		sold := 0
		for i := 0; i < 12; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Create(ctx, owner, order(ticketID, 1))
				switch {
				case err == nil:
					mu.Lock()
					sold++
					mu.Unlock()
				case !apperr.Is(err, apperr.CodeCapacityExceeded):
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		return sold
	}

	if sold := run(dedicatedID); sold != 5 {
		t.Errorf("dedicated: sold %d, want 5", sold)
	}
	if sold := run(sharedID); sold != 4 {
		t.Errorf("shared: sold %d, want 4", sold)
	}

	var soldCount, used int
	_ = pool.QueryRow(ctx, `SELECT sold_count FROM tickets WHERE id = $1`, dedicatedID).Scan(&soldCount)
	_ = pool.QueryRow(ctx, `SELECT used_capacity FROM capacity_pools WHERE id = $1`, poolID).Scan(&used)
	if soldCount != 5 || used != 4 {
		t.Errorf("counters: sold_count=%d used_capacity=%d", soldCount, used)
	}
}
