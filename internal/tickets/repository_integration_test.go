package tickets

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reservas-events/backend/internal/models"
	"github.com/reservas-events/backend/pkg/apperr"
	"github.com/reservas-events/backend/pkg/database"
)

// TestRepository_UpdateAfterConcurrentSale writes a stale snapshot over a row that sold in between.
func TestRepository_UpdateAfterConcurrentSale(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 4}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var userID, eventID, ticketID uuid.UUID
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
	if err := pool.QueryRow(ctx, `INSERT INTO tickets (event_id, name, price_cents, capacity_type, dedicated_capacity,
			sale_start_date, sale_end_date)
		VALUES ($1, 'General', 1000, 'dedicated', 5, NOW() - INTERVAL '1 hour', NOW() + INTERVAL '1 hour') RETURNING id`, eventID).
		Scan(&ticketID); err != nil {
		t.Fatalf("insert ticket: %v", err)
	}

	repo := NewRepository(pool)
	stale, err := repo.GetTicket(ctx, ticketID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE tickets SET sold_count = 2 WHERE id = $1`, ticketID); err != nil {
		t.Fatalf("sell: %v", err)
	}

	changed := *stale
	changed.CapacityType = models.CapacityUnlimited
	changed.DedicatedCapacity = nil
	if err := repo.UpdateTicket(ctx, &changed); !apperr.Is(err, apperr.CodeConflict) {
		t.Fatalf("type change over sales: expected CONFLICT, got %v", err)
	}

	renamed := *stale
	renamed.Name = "Preventa"
	if err := repo.UpdateTicket(ctx, &renamed); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.SoldCount != 2 {
		t.Errorf("sold_count = %d, want 2", renamed.SoldCount)
	}

	missing := *stale
	missing.ID = uuid.New()
	if err := repo.UpdateTicket(ctx, &missing); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("unknown ticket: expected NOT_FOUND, got %v", err)
	}
}
