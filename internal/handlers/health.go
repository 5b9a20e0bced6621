package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"coldreach/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles basic health check requests
func HealthHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := models.HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Version:   version,
		}

		return c.JSON(http.StatusOK, response)
	}
}

// DBHealthHandler handles database health check requests. The probe runs a
// trivial query inside a read-only transaction so a wedged pool surfaces as
// unhealthy rather than hanging the endpoint.
func DBHealthHandler(db *sqlx.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := models.DBHealthResponse{
			Status:    "unknown",
			Timestamp: time.Now().UTC(),
			Connected: false,
			Latency:   0,
		}

		if db == nil {
			response.Status = "unhealthy"
			response.Error = "Database connection not initialized"
			return c.JSON(http.StatusServiceUnavailable, response)
		}

		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			response.Latency = time.Since(start)
			response.Status = "unhealthy"
			response.Error = fmt.Sprintf("failed to begin read-only transaction: %v", err)
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		defer func() { _ = tx.Rollback() }()

		var one int
		if err := tx.GetContext(ctx, &one, "SELECT 1"); err != nil {
			response.Latency = time.Since(start)
			response.Status = "unhealthy"
			response.Error = fmt.Sprintf("Database read-only query failed: %v", err)
			return c.JSON(http.StatusServiceUnavailable, response)
		}

		response.Latency = time.Since(start)
		response.Status = "healthy"
		response.Connected = true

		return c.JSON(http.StatusOK, response)
	}
}

// RootHandler handles requests to the root endpoint
func RootHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "Coldreach API",
			"version": version,
			"status":  "running",
		})
	}
}
