// Package pagestore 负责页面文档在 PostgreSQL 中的读取与对账保存。
package pagestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"phFolio/internal/block"
	"phFolio/internal/database"
	"phFolio/internal/layout"
	"phFolio/internal/page"
	"phFolio/internal/render"
)

var (
	// ErrForeignBlock 表示提交的块 ID 属于其他账号。
	ErrForeignBlock = errors.New("block belongs to another account")
	// ErrAccountNotFound 表示账号（或公开 slug）不存在。
	ErrAccountNotFound = errors.New("account not found")
)

// Store 封装页面相关的数据库操作。
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Result 汇总一次对账写入的数量。
type Result struct {
	Deleted    int64
	Upserted   int
	Placements int
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With(slog.String("component", "pagestore"))}
}

// Load 读取账号的完整页面文档。缺失的网格配置使用设备默认值。
func (s *Store) Load(ctx context.Context, accountID uint) (page.Document, error) {
	db := s.db.WithContext(ctx)
	doc := page.Empty()

	var rows []database.PageBlock
	if err := db.Where("account_id = ?", accountID).Order("created_at, id").Find(&rows).Error; err != nil {
		return page.Document{}, fmt.Errorf("query blocks: %w", err)
	}
	known := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		b, err := blockFromRow(row)
		if err != nil {
			s.logger.Warn("skip undecodable block",
				slog.String("block_id", row.ID),
				slog.Uint64("account_id", uint64(accountID)),
				slog.Any("error", err),
			)
			continue
		}
		doc.Blocks = append(doc.Blocks, b)
		known[b.ID] = struct{}{}
	}

	var placements []database.PagePlacement
	if err := db.Where("account_id = ?", accountID).Order("device, position, id").Find(&placements).Error; err != nil {
		return page.Document{}, fmt.Errorf("query placements: %w", err)
	}
	for _, row := range placements {
		d, err := layout.ParseDevice(row.Device)
		if err != nil {
			continue
		}
		if _, ok := known[row.BlockID]; !ok {
			continue
		}
		doc.Layouts[d] = append(doc.Layouts[d], layout.Placement{
			BlockID: row.BlockID, X: row.X, Y: row.Y, W: row.W, H: row.H,
		})
	}

	var grids []database.GridSetting
	if err := db.Where("account_id = ?", accountID).Find(&grids).Error; err != nil {
		return page.Document{}, fmt.Errorf("query grid settings: %w", err)
	}
	for _, row := range grids {
		d, err := layout.ParseDevice(row.Device)
		if err != nil {
			continue
		}
		doc.GridSettings[d] = layout.GridProfile{Columns: row.Columns, RowHeightPx: row.RowHeightPx}.Clamp()
	}

	return doc, nil
}

// CreateBlock 为块分配服务端 ID 并写入数据库。传入的 ID（通常是占位 ID）被忽略。
func (s *Store) CreateBlock(ctx context.Context, accountID uint, b block.Block) (block.Block, error) {
	if !b.DeviceAffinity.Valid() {
		b.DeviceAffinity = layout.Desktop
	}
	b.ID = uuid.NewString()
	if err := b.Validate(); err != nil {
		return block.Block{}, err
	}

	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	row, err := rowFromBlock(accountID, b)
	if err != nil {
		return block.Block{}, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return block.Block{}, fmt.Errorf("create block: %w", err)
	}
	return b, nil
}

// Reconcile 在一个事务内把数据库状态对齐到 doc：
// 删除 doc 中不存在的本账号块，写入（upsert）提交的块，整体替换 doc 中出现的每个设备的放置列表
// （未出现的设备保持不变），并写入网格配置。引用未知块的放置项被丢弃。对同一 doc 重复调用结果不变。
func (s *Store) Reconcile(ctx context.Context, accountID uint, doc page.Document) (Result, error) {
	if err := doc.Validate(); err != nil {
		return Result{}, err
	}

	ids := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		ids = append(ids, b.ID)
	}
	submitted := doc.BlockIDs()

	var res Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			var foreign int64
			if err := tx.Model(&database.PageBlock{}).
				Where("id IN ? AND account_id <> ?", ids, accountID).
				Count(&foreign).Error; err != nil {
				return fmt.Errorf("check block ownership: %w", err)
			}
			if foreign > 0 {
				return ErrForeignBlock
			}
		}

		del := tx.Where("account_id = ?", accountID)
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		deleted := del.Delete(&database.PageBlock{})
		if deleted.Error != nil {
			return fmt.Errorf("delete removed blocks: %w", deleted.Error)
		}
		res.Deleted = deleted.RowsAffected

		if len(doc.Blocks) > 0 {
			now := time.Now().UTC()
			rows := make([]database.PageBlock, 0, len(doc.Blocks))
			for _, b := range doc.Blocks {
				if !b.DeviceAffinity.Valid() {
					b.DeviceAffinity = layout.Desktop
				}
				if b.CreatedAt.IsZero() {
					b.CreatedAt = now
				}
				b.UpdatedAt = now
				row, err := rowFromBlock(accountID, b)
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"kind", "payload", "device_affinity", "updated_at"}),
			}).Create(&rows).Error; err != nil {
				return fmt.Errorf("upsert blocks: %w", err)
			}
			res.Upserted = len(rows)
		}

		// 只替换提交了的设备；未提交设备上指向已删除块的放置项一并清理
		devices := make([]string, 0, len(doc.Layouts))
		for d := range doc.Layouts {
			devices = append(devices, string(d))
		}
		stale := tx.Where("account_id = ?", accountID)
		if len(ids) > 0 {
			if len(devices) > 0 {
				stale = stale.Where("device IN ? OR block_id NOT IN ?", devices, ids)
			} else {
				stale = stale.Where("block_id NOT IN ?", ids)
			}
		}
		if err := stale.Delete(&database.PagePlacement{}).Error; err != nil {
			return fmt.Errorf("clear placements: %w", err)
		}
		placements := placementRows(accountID, doc, submitted)
		if len(placements) > 0 {
			if err := tx.Create(&placements).Error; err != nil {
				return fmt.Errorf("insert placements: %w", err)
			}
		}
		res.Placements = len(placements)

		grids := make([]database.GridSetting, 0, len(doc.GridSettings))
		for _, d := range layout.Devices() {
			p, ok := doc.GridSettings[d]
			if !ok {
				continue
			}
			grids = append(grids, database.GridSetting{
				AccountID:   accountID,
				Device:      string(d),
				Columns:     p.Columns,
				RowHeightPx: p.RowHeightPx,
			})
		}
		if len(grids) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_id"}, {Name: "device"}},
				DoUpdates: clause.AssignmentColumns([]string{"columns", "row_height_px", "updated_at"}),
			}).Create(&grids).Error; err != nil {
				return fmt.Errorf("upsert grid settings: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("page reconciled",
		slog.Uint64("account_id", uint64(accountID)),
		slog.Int64("deleted", res.Deleted),
		slog.Int("upserted", res.Upserted),
		slog.Int("placements", res.Placements),
	)
	return res, nil
}

// Account 按 ID 查找账号。
func (s *Store) Account(ctx context.Context, accountID uint) (database.Account, error) {
	var account database.Account
	if err := s.db.WithContext(ctx).First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Account{}, ErrAccountNotFound
		}
		return database.Account{}, fmt.Errorf("query account: %w", err)
	}
	return account, nil
}

// AccountBySlug 按公开 slug 查找账号。
func (s *Store) AccountBySlug(ctx context.Context, slug string) (database.Account, error) {
	var account database.Account
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return database.Account{}, ErrAccountNotFound
		}
		return database.Account{}, fmt.Errorf("query account: %w", err)
	}
	return account, nil
}

// Public 返回 slug 对应页面在指定设备上的只读渲染结果。
func (s *Store) Public(ctx context.Context, slug string, device layout.Device) (render.Page, error) {
	account, err := s.AccountBySlug(ctx, slug)
	if err != nil {
		return render.Page{}, err
	}
	return s.Render(ctx, account.ID, device)
}

// Render 渲染账号页面在指定设备上的只读结果。
func (s *Store) Render(ctx context.Context, accountID uint, device layout.Device) (render.Page, error) {
	if !device.Valid() {
		return render.Page{}, fmt.Errorf("%w: %q", layout.ErrUnknownDevice, device)
	}
	doc, err := s.Load(ctx, accountID)
	if err != nil {
		return render.Page{}, err
	}
	return render.Render(device, doc.GridSettings.Get(device), doc.Blocks, doc.Layouts[device]), nil
}

func placementRows(accountID uint, doc page.Document, known map[string]struct{}) []database.PagePlacement {
	devices := make([]layout.Device, 0, len(doc.Layouts))
	for d := range doc.Layouts {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i] < devices[j] })

	var rows []database.PagePlacement
	for _, d := range devices {
		position := 0
		for _, p := range doc.Layouts[d] {
			if _, ok := known[p.BlockID]; !ok {
				continue
			}
			rows = append(rows, database.PagePlacement{
				AccountID: accountID,
				Device:    string(d),
				BlockID:   p.BlockID,
				Position:  position,
				X:         p.X,
				Y:         p.Y,
				W:         p.W,
				H:         p.H,
			})
			position++
		}
	}
	return rows
}

func rowFromBlock(accountID uint, b block.Block) (database.PageBlock, error) {
	payload, err := block.MarshalPayload(b.Payload)
	if err != nil {
		return database.PageBlock{}, fmt.Errorf("encode block %s: %w", b.ID, err)
	}
	return database.PageBlock{
		ID:             b.ID,
		AccountID:      accountID,
		Kind:           string(b.Kind),
		Payload:        []byte(payload),
		DeviceAffinity: string(b.DeviceAffinity),
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}, nil
}

func blockFromRow(row database.PageBlock) (block.Block, error) {
	kind, err := block.ParseKind(row.Kind)
	if err != nil {
		return block.Block{}, err
	}
	payload, err := block.Decode(kind, []byte(row.Payload))
	if err != nil {
		return block.Block{}, err
	}
	affinity, err := layout.ParseDevice(row.DeviceAffinity)
	if err != nil {
		affinity = layout.Desktop
	}
	return block.Block{
		ID:             row.ID,
		Kind:           kind,
		Payload:        payload,
		DeviceAffinity: affinity,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}
