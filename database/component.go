package database

import (
	"context"
	"fmt"

	"github.com/kbukum/bookingplatform/component"
	"github.com/kbukum/bookingplatform/logger"
)

var (
	_ component.Component = (*Component)(nil)
	_ Source              = (*Component)(nil)
)

// Component wraps DB for lifecycle management.
type Component struct {
	db     *DB
	cfg    Config
	log    *logger.Logger
	models []interface{}
}

// NewComponent creates a database component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("database")}
}

// WithAutoMigrate registers models for auto-migration on Start.
func (c *Component) WithAutoMigrate(models ...interface{}) *Component {
	c.models = append(c.models, models...)
	return c
}

// DB returns the underlying *DB, or nil before Start.
func (c *Component) DB() *DB { return c.db }

func (c *Component) Name() string { return "database" }

// Start connects and runs auto-migration when enabled.
func (c *Component) Start(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	db, err := Open(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("database start: %w", err)
	}
	c.db = db

	if c.cfg.AutoMigrate && len(c.models) > 0 {
		if err := c.db.AutoMigrate(c.models...); err != nil {
			return fmt.Errorf("database auto-migrate: %w", err)
		}
	}
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	if c.db == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "database not initialized"}
	}
	if err := c.db.PingContext(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}
