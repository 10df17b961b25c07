package layout

// AppendRow 是创建时使用的 y 哨兵值，表示“追加到底部”，持久化前会被解析为具体行号。
const AppendRow = -1

// Placement 描述一个块在某个设备网格上的位置与尺寸。
type Placement struct {
	BlockID string `json:"block_id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	W       int    `json:"w"`
	H       int    `json:"h"`
}

// List 是单个设备的有序放置列表。
type List []Placement

// BottomRow 返回当前列表占用的最低行之后的第一行。
func (l List) BottomRow() int {
	bottom := 0
	for _, p := range l {
		if p.Y == AppendRow {
			continue
		}
		if end := p.Y + p.H; end > bottom {
			bottom = end
		}
	}
	return bottom
}

func (l List) Contains(blockID string) bool {
	return l.Index(blockID) >= 0
}

func (l List) Index(blockID string) int {
	for i, p := range l {
		if p.BlockID == blockID {
			return i
		}
	}
	return -1
}

// Without 返回移除指定块后的新列表。
func (l List) Without(blockID string) List {
	out := make(List, 0, len(l))
	for _, p := range l {
		if p.BlockID != blockID {
			out = append(out, p)
		}
	}
	return out
}

// Prune 丢弃引用不存在块的放置项。
func (l List) Prune(exists func(blockID string) bool) List {
	out := make(List, 0, len(l))
	for _, p := range l {
		if exists(p.BlockID) {
			out = append(out, p)
		}
	}
	return out
}

// Rename 将引用 from 的放置项改为引用 to。
func (l List) Rename(from, to string) {
	for i := range l {
		if l[i].BlockID == from {
			l[i].BlockID = to
		}
	}
}

// Normalize 将列表裁剪到网格范围内：尺寸至少为 1，宽度不超过列数，
// 坐标非负，AppendRow 解析为具体行号；重复的块 ID 只保留第一个。
func (l List) Normalize(profile GridProfile) List {
	columns := profile.Clamp().Columns
	out := make(List, 0, len(l))
	seen := make(map[string]struct{}, len(l))
	appended := false

	for _, p := range l {
		if p.BlockID == "" {
			continue
		}
		if _, dup := seen[p.BlockID]; dup {
			continue
		}
		seen[p.BlockID] = struct{}{}

		p.W = clamp(p.W, 1, columns)
		if p.H < 1 {
			p.H = 1
		}
		if p.X < 0 {
			p.X = 0
		}
		if p.X+p.W > columns {
			p.X = columns - p.W
		}
		if p.Y == AppendRow {
			appended = true
			out = append(out, p)
			continue
		}
		if p.Y < 0 {
			p.Y = 0
		}
		out = append(out, p)
	}

	if !appended {
		return out
	}
	bottom := out.BottomRow()
	for i := range out {
		if out[i].Y != AppendRow {
			continue
		}
		out[i].Y = bottom
		bottom += out[i].H
	}
	return out
}

func (l List) Clone() List {
	if l == nil {
		return List{}
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Layouts 按设备保存放置列表。
type Layouts map[Device]List

// NewLayouts 为每个设备创建空列表。
func NewLayouts() Layouts {
	out := make(Layouts, 2)
	for _, d := range Devices() {
		out[d] = List{}
	}
	return out
}

func (ls Layouts) Clone() Layouts {
	out := make(Layouts, len(ls))
	for d, l := range ls {
		out[d] = l.Clone()
	}
	for _, d := range Devices() {
		if _, ok := out[d]; !ok {
			out[d] = List{}
		}
	}
	return out
}
