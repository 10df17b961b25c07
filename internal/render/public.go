package render

import (
	"sort"

	"phFolio/internal/block"
	"phFolio/internal/layout"
)

// Item 是公开页面中一个已定位的块。
type Item struct {
	Block     block.Block      `json:"block"`
	Placement layout.Placement `json:"placement"`
}

// Page 是某个设备上的只读页面。
type Page struct {
	Device layout.Device      `json:"device"`
	Grid   layout.GridProfile `json:"grid"`
	Items  []Item             `json:"items"`
}

// Render 将持久化的块与放置列表组合为只读页面：
// 引用缺失块的放置项被跳过，没有放置项的块不出现；结果按 (y, x) 排序。
func Render(device layout.Device, grid layout.GridProfile, blocks []block.Block, placements layout.List) Page {
	byID := make(map[string]block.Block, len(blocks))
	for _, b := range blocks {
		byID[b.ID] = b
	}

	items := make([]Item, 0, len(placements))
	for _, p := range placements.Normalize(grid) {
		b, ok := byID[p.BlockID]
		if !ok {
			continue
		}
		items = append(items, Item{Block: b, Placement: p})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Placement, items[j].Placement
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	return Page{Device: device, Grid: grid, Items: items}
}
