package data

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

// NewMySQL opens dsn and makes sure the settings table exists.
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	if err := db.AutoMigrate(&types.Setting{}); err != nil {
		return nil, fmt.Errorf("migrate settings: %w", err)
	}
	return db, nil
}
