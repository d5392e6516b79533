package models

import "time"

// Record is one stored document in the relational record store
type Record struct {
	Collection string    `gorm:"primaryKey;size:64"`
	ID         string    `gorm:"primaryKey;size:255"`
	Doc        string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name for Record
func (Record) TableName() string {
	return "records"
}
