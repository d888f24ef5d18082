package db

import (
	"strings"
	"time"
)

type UserModel struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	Username       string    `gorm:"uniqueIndex;not null"`
	PasswordSHA256 string    `gorm:"not null"`
	Roles          string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

type ResellerKeyModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	Key        string    `gorm:"uniqueIndex;not null"`
	ResellerID string    `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type ItemModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	Description string    `gorm:"not null"`
	Price       int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

type OrderModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	ItemID    string    `gorm:"type:uuid;index;not null"`
	Quantity  int       `gorm:"not null"`
	OrderedBy string    `gorm:"index;not null"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func joinRoles(roles []string) string {
	return strings.Join(roles, " ")
}

func splitRoles(roles string) []string {
	fields := strings.Fields(roles)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
