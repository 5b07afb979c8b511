package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 5 * time.Second

// PoolStats is the connection pool snapshot reported by the database health
// endpoint.
type PoolStats struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
	Max      int32 `json:"max"`
}

// Health is the payload served on /health/db. Status is "up" or "down";
// Error is present only when the ping failed.
type Health struct {
	Status    string    `json:"status"`
	PingMs    int64     `json:"ping_ms"`
	Error     string    `json:"error,omitempty"`
	Pool      PoolStats `json:"pool"`
	CheckedAt time.Time `json:"checked_at"`
}

// Snapshot captures the current pool statistics.
func Snapshot(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		Total:    s.TotalConns(),
		Idle:     s.IdleConns(),
		Acquired: s.AcquiredConns(),
		Max:      s.MaxConns(),
	}
}

// Check pings the database with a short deadline and reports the outcome
// together with a pool snapshot.
func Check(ctx context.Context, pool *pgxpool.Pool) Health {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	started := time.Now()
	err := pool.Ping(ctx)
	h := Health{
		Status:    "up",
		PingMs:    time.Since(started).Milliseconds(),
		Pool:      Snapshot(pool),
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		h.Status = "down"
		h.Error = err.Error()
	}
	return h
}

// HealthHandler serves the database health endpoint. A stalled database
// turns into a 503 instead of a hung probe.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := Check(c.Request().Context(), pool)
		if h.Status != "up" {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
