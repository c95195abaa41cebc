// Package database provides a GORM component backed by SQLite, with
// connection retries, transactions and auto-migration.
//
//	db := database.NewComponent(cfg.Database, log).WithAutoMigrate(&Invoice{}, &Payment{})
//	registry.Register(db)
//
// FromDatabase maps GORM errors onto errors.AppError so handlers can
// return them directly.
package database
