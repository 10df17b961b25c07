package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account 表示作品集页面的拥有者。
type Account struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:64"`
	Slug         string `gorm:"uniqueIndex;size:64"`
	PasswordHash string `gorm:"size:255"`
}

// PageBlock 是持久化的内容块，ID 由服务端生成（UUID）。
type PageBlock struct {
	ID             string         `gorm:"primaryKey;size:64"`
	AccountID      uint           `gorm:"index;not null"`
	Kind           string         `gorm:"size:32;not null"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	DeviceAffinity string         `gorm:"size:16"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PagePlacement 是块在某个设备网格上的位置。同一账号、设备内每个块至多一条。
type PagePlacement struct {
	ID        uint   `gorm:"primaryKey"`
	AccountID uint   `gorm:"uniqueIndex:idx_page_placement_slot;not null"`
	Device    string `gorm:"uniqueIndex:idx_page_placement_slot;size:16;not null"`
	BlockID   string `gorm:"uniqueIndex:idx_page_placement_slot;size:64;not null"`
	Position  int
	X         int
	Y         int
	W         int
	H         int
}

// GridSetting 是账号在某个设备上的网格配置。
type GridSetting struct {
	AccountID   uint   `gorm:"primaryKey;autoIncrement:false"`
	Device      string `gorm:"primaryKey;size:16"`
	Columns     int
	RowHeightPx int
	UpdatedAt   time.Time
}

// Models 返回需要 AutoMigrate 的全部模型。
func Models() []any {
	return []any{&Account{}, &PageBlock{}, &PagePlacement{}, &GridSetting{}}
}
