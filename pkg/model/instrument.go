// pkg/model/instrument.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Instrument 可交易标的，基础参考数据，由 cmd/seed 预置
type Instrument struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Ticker    string    `gorm:"uniqueIndex;not null" json:"ticker"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Instrument) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
