package page

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"phFolio/internal/block"
	"phFolio/internal/layout"
)

var ErrInvalidDocument = errors.New("invalid page document")

// Document 是一次保存请求或加载响应携带的完整页面状态。
type Document struct {
	Blocks       []block.Block   `json:"blocks"`
	Layouts      layout.Layouts  `json:"layouts"`
	GridSettings layout.Profiles `json:"grid_settings"`
}

// Empty 返回没有任何块、使用默认网格配置的文档。
func Empty() Document {
	return Document{
		Blocks:       []block.Block{},
		Layouts:      layout.NewLayouts(),
		GridSettings: layout.DefaultProfiles(),
	}
}

func (d Document) Clone() Document {
	blocks := make([]block.Block, len(d.Blocks))
	for i, b := range d.Blocks {
		blocks[i] = b.Clone()
	}
	profiles := d.GridSettings.Clone()
	if profiles == nil {
		profiles = layout.DefaultProfiles()
	}
	return Document{
		Blocks:       blocks,
		Layouts:      d.Layouts.Clone(),
		GridSettings: profiles,
	}
}

// BlockIDs 返回文档中全部块 ID 的集合。
func (d Document) BlockIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(d.Blocks))
	for _, b := range d.Blocks {
		ids[b.ID] = struct{}{}
	}
	return ids
}

// Validate 只做基础形状检查：块 ID 唯一且已持久化，payload 与 kind 一致，
// 设备名合法，坐标非负、尺寸为正，同一设备内块 ID 不重复，网格配置在范围内。
func (d Document) Validate() error {
	seen := make(map[string]struct{}, len(d.Blocks))
	for i, b := range d.Blocks {
		if b.ID == "" {
			return fmt.Errorf("%w: blocks[%d]: id is required", ErrInvalidDocument, i)
		}
		if block.IsDraft(b.ID) {
			return fmt.Errorf("%w: blocks[%d]: unsaved placeholder id %q", ErrInvalidDocument, i, b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: blocks[%d]: duplicate id %q", ErrInvalidDocument, i, b.ID)
		}
		seen[b.ID] = struct{}{}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%w: blocks[%d]: %w", ErrInvalidDocument, i, err)
		}
	}

	for device, items := range d.Layouts {
		if !device.Valid() {
			return fmt.Errorf("%w: layouts: %w: %q", ErrInvalidDocument, layout.ErrUnknownDevice, device)
		}
		if err := validatePlacements(items, d.GridSettings.Get(device)); err != nil {
			return fmt.Errorf("%w: layouts.%s: %w", ErrInvalidDocument, device, err)
		}
	}

	for device, profile := range d.GridSettings {
		if !device.Valid() {
			return fmt.Errorf("%w: grid_settings: %w: %q", ErrInvalidDocument, layout.ErrUnknownDevice, device)
		}
		if err := validateProfile(profile); err != nil {
			return fmt.Errorf("%w: grid_settings.%s: %w", ErrInvalidDocument, device, err)
		}
	}
	return nil
}

func validatePlacements(items layout.List, profile layout.GridProfile) error {
	seen := make(map[string]struct{}, len(items))
	for i, p := range items {
		err := validation.ValidateStruct(&p,
			validation.Field(&p.BlockID, validation.Required),
			validation.Field(&p.X, validation.Min(0), validation.Max(profile.Columns-1)),
			validation.Field(&p.Y, validation.Min(0)),
			validation.Field(&p.W, validation.Required, validation.Min(1), validation.Max(profile.Columns)),
			validation.Field(&p.H, validation.Required, validation.Min(1)),
		)
		if err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
		if _, dup := seen[p.BlockID]; dup {
			return fmt.Errorf("[%d]: duplicate block_id %q", i, p.BlockID)
		}
		seen[p.BlockID] = struct{}{}
	}
	return nil
}

func validateProfile(p layout.GridProfile) error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Columns, validation.Min(layout.MinColumns), validation.Max(layout.MaxColumns)),
		validation.Field(&p.RowHeightPx, validation.Min(layout.MinRowHeightPx), validation.Max(layout.MaxRowHeightPx)),
	)
}
