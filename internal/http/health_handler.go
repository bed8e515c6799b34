package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"profilehub/internal/users"
)

// HealthStatus is the body of /_health. It is not wrapped in the response envelope.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
	Users     int64     `json:"users"`
	GeoIP     bool      `json:"geoip"`
}

// HealthAction pings the database and reports a degraded status when it is unreachable.
func (h *Handlers) HealthAction(ctx *cartridge.Context) error {
	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		DBStatus:  "ok",
		GeoIP:     h.svc.GeoIPEnabled(),
	}

	db := h.svc.DB()
	if err := pingDB(ctx, db); err != nil {
		ctx.Logger.Error("Health check failed", slog.Any("error", err))
		health.Status = "degraded"
		health.DBStatus = "error"
		return ctx.JSON(health)
	}

	count, err := users.Count(db.WithContext(requestContext(ctx)))
	if err != nil {
		ctx.Logger.Warn("Health check could not count users", slog.Any("error", err))
	}
	health.Users = count
	return ctx.JSON(health)
}

func pingDB(ctx *cartridge.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database connection unavailable")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(requestContext(ctx))
}
