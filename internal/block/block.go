package block

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"phFolio/internal/layout"
)

// DraftPrefix 标记尚未持久化的块使用的占位 ID。
const DraftPrefix = "draft-"

// Block 是编辑会话中的一个内容块。
type Block struct {
	ID             string
	Kind           Kind
	Payload        Payload
	DeviceAffinity layout.Device
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New 以占位 ID 创建草稿块，Kind 取自 payload，保证二者一致。
func New(payload Payload, device layout.Device) (Block, error) {
	if err := Check(payload); err != nil {
		return Block{}, err
	}
	if !device.Valid() {
		device = layout.Desktop
	}
	return Block{
		ID:             DraftPrefix + uuid.NewString(),
		Kind:           payload.Kind(),
		Payload:        Clone(payload),
		DeviceAffinity: device,
	}, nil
}

// IsDraft 判断 ID 是否为客户端占位 ID。
func IsDraft(id string) bool {
	return strings.HasPrefix(id, DraftPrefix)
}

// Validate 校验块的类型标签与 payload 是否一致。
func (b Block) Validate() error {
	if _, err := ParseKind(string(b.Kind)); err != nil {
		return err
	}
	if b.Payload == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	if b.Payload.Kind() != b.Kind {
		return fmt.Errorf("%w: block %s is %s, payload is %s", ErrKindMismatch, b.ID, b.Kind, b.Payload.Kind())
	}
	return Check(b.Payload)
}

// WithPayload 返回替换 payload 后的块，类型不一致时报错。
func (b Block) WithPayload(p Payload) (Block, error) {
	if p == nil {
		return b, fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	if p.Kind() != b.Kind {
		return b, fmt.Errorf("%w: block %s is %s, payload is %s", ErrKindMismatch, b.ID, b.Kind, p.Kind())
	}
	if err := Check(p); err != nil {
		return b, err
	}
	b.Payload = Clone(p)
	return b, nil
}

func (b Block) Clone() Block {
	b.Payload = Clone(b.Payload)
	return b
}

type wireBlock struct {
	ID             string          `json:"id,omitempty"`
	Kind           Kind            `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	DeviceAffinity layout.Device   `json:"device_affinity,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(b.Payload)
	if err != nil {
		return nil, err
	}
	w := wireBlock{
		ID:             b.ID,
		Kind:           b.Kind,
		Payload:        payload,
		DeviceAffinity: b.DeviceAffinity,
	}
	if !b.CreatedAt.IsZero() {
		w.CreatedAt = &b.CreatedAt
	}
	if !b.UpdatedAt.IsZero() {
		w.UpdatedAt = &b.UpdatedAt
	}
	return json.Marshal(w)
}

// UnmarshalJSON 按 kind 解析 payload，并拒绝与 kind 不符的形状。
func (b *Block) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, err := ParseKind(string(w.Kind))
	if err != nil {
		return err
	}
	payload, err := Decode(kind, w.Payload)
	if err != nil {
		return err
	}

	*b = Block{
		ID:             w.ID,
		Kind:           kind,
		Payload:        payload,
		DeviceAffinity: w.DeviceAffinity,
	}
	if w.CreatedAt != nil {
		b.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		b.UpdatedAt = *w.UpdatedAt
	}
	return nil
}

// MarshalPayload 将 payload 编码为 JSON，nil 编码为 {}。
func MarshalPayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Kind(), err)
	}
	return data, nil
}
