package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	base.EnsureID()
	return nil
}

// EnsureID assigns a fresh UUID when the record has none yet.
func (base *BaseModel) EnsureID() {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN     string
	LogMode logger.LogLevel
}

// InitDB opens the MySQL connection. Schema migration is a separate step, see AutoMigrate.
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	logMode := config.LogMode
	if logMode == 0 {
		logMode = logger.Warn
	}

	db, err := gorm.Open(mysql.Open(config.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates every table the server owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Doctor{},
		&Patient{},
		&RefreshToken{},
		&Appointment{},
		&MedicalReport{},
		&Payment{},
		&ChatMessage{},
	)
}
