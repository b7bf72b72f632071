package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"opex/models"
)

var db *gorm.DB

// initDb opens the single-file store and creates any missing tables.
// busy_timeout bounds the wait on the file lock when another writer holds it.
func initDb() {
	dsn := fmt.Sprintf("%s?_busy_timeout=10000", dbPath)

	var err error
	db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to open database", zap.String("path", dbPath), zap.Error(err))
	}

	err = db.AutoMigrate(
		&models.Contract{},
		&models.PurchaseOrder{},
		&models.ContractBudget{},
		&models.YearlyBudget{},
		&models.Department{},
		&models.Account{},
		&models.StatusMaster{},
		&models.Attachment{},
	)
	if err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}
}
