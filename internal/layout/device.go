package layout

import (
	"errors"
	"fmt"
	"strings"
)

// Device 表示一种网格设备配置。
type Device string

const (
	Desktop Device = "desktop"
	Mobile  Device = "mobile"
)

// 网格配置的取值范围，避免出现退化布局。
const (
	MinColumns     = 1
	MaxColumns     = 24
	MinRowHeightPx = 20
	MaxRowHeightPx = 500
)

var ErrUnknownDevice = errors.New("unknown device")

// Devices 以固定顺序返回全部设备。
func Devices() []Device {
	return []Device{Desktop, Mobile}
}

// ParseDevice 将字符串解析为 Device。
func ParseDevice(raw string) (Device, error) {
	switch Device(strings.ToLower(strings.TrimSpace(raw))) {
	case Desktop:
		return Desktop, nil
	case Mobile:
		return Mobile, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDevice, raw)
	}
}

func (d Device) Valid() bool {
	return d == Desktop || d == Mobile
}

// GridProfile 描述单个设备的列数与行高。
type GridProfile struct {
	Columns     int `json:"columns"`
	RowHeightPx int `json:"row_height_px"`
}

// GridUpdate 描述对 GridProfile 的部分更新，nil 字段保持不变。
type GridUpdate struct {
	Columns     *int `json:"columns,omitempty"`
	RowHeightPx *int `json:"row_height_px,omitempty"`
}

// DefaultProfile 返回设备的默认网格配置。
func DefaultProfile(d Device) GridProfile {
	switch d {
	case Mobile:
		return GridProfile{Columns: 4, RowHeightPx: 60}
	default:
		return GridProfile{Columns: 12, RowHeightPx: 60}
	}
}

// DefaultProfiles 返回全部设备的默认配置。
func DefaultProfiles() Profiles {
	profiles := make(Profiles, 2)
	for _, d := range Devices() {
		profiles[d] = DefaultProfile(d)
	}
	return profiles
}

// Clamp 将配置限制在允许范围内。
func (p GridProfile) Clamp() GridProfile {
	return GridProfile{
		Columns:     clamp(p.Columns, MinColumns, MaxColumns),
		RowHeightPx: clamp(p.RowHeightPx, MinRowHeightPx, MaxRowHeightPx),
	}
}

// InBounds 判断配置是否已经处于合法范围。
func (p GridProfile) InBounds() bool {
	return p == p.Clamp()
}

// Apply 合并部分更新并返回裁剪后的结果。
func (p GridProfile) Apply(u GridUpdate) GridProfile {
	next := p
	if u.Columns != nil {
		next.Columns = *u.Columns
	}
	if u.RowHeightPx != nil {
		next.RowHeightPx = *u.RowHeightPx
	}
	return next.Clamp()
}

// Profiles 按设备保存网格配置。
type Profiles map[Device]GridProfile

// Get 返回设备配置，缺失时回落到默认值。
func (p Profiles) Get(d Device) GridProfile {
	if profile, ok := p[d]; ok {
		return profile
	}
	return DefaultProfile(d)
}

func (p Profiles) Clone() Profiles {
	out := make(Profiles, len(p))
	for d, profile := range p {
		out[d] = profile
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
