package block

import (
	"bytes"
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Payload 是块内容的和类型，每种 Kind 对应一个具体结构体。
// 接口含未导出方法，外部包无法实现新的变体。
type Payload interface {
	Kind() Kind
	Validate() error
	clone() Payload
}

const (
	maxTextLength = 5000
	maxRefs       = 100
)

// LocalizedText 保存双语文本。
type LocalizedText struct {
	EN string `json:"en"`
	AR string `json:"ar"`
}

// TextPayload 文本块。
type TextPayload struct {
	Variant   string        `json:"variant"`
	Text      LocalizedText `json:"text"`
	Bold      bool          `json:"bold"`
	Italic    bool          `json:"italic"`
	Underline bool          `json:"underline"`
	Align     string        `json:"align"`
}

func (TextPayload) Kind() Kind { return KindText }

func (p TextPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Variant, validation.Required, validation.In("heading", "subheading", "paragraph", "quote")),
		validation.Field(&p.Align, validation.In("left", "center", "right")),
		validation.Field(&p.Text),
	)
}

func (t LocalizedText) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.EN, validation.Length(0, maxTextLength)),
		validation.Field(&t.AR, validation.Length(0, maxTextLength)),
	)
}

func (p TextPayload) clone() Payload { return p }

// ImagePayload 图片块。
type ImagePayload struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
	Fit     string `json:"fit"`
}

func (ImagePayload) Kind() Kind { return KindImage }

func (p ImagePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.URL, validation.Required, is.URL),
		validation.Field(&p.Alt, validation.Length(0, 500)),
		validation.Field(&p.Caption, validation.Length(0, 500)),
		validation.Field(&p.Fit, validation.In("cover", "contain")),
	)
}

func (p ImagePayload) clone() Payload { return p }

// SkillsPayload 技能列表块，引用技能 ID。
type SkillsPayload struct {
	SkillIDs     []string `json:"skill_ids"`
	ShowLevel    bool     `json:"show_level"`
	ShowCategory bool     `json:"show_category"`
}

func (SkillsPayload) Kind() Kind { return KindSkills }

func (p SkillsPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SkillIDs, validation.Length(0, maxRefs), validation.Each(validation.Required)),
	)
}

func (p SkillsPayload) clone() Payload {
	p.SkillIDs = cloneStrings(p.SkillIDs)
	return p
}

// SocialLink 社交链接。
type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

func (l SocialLink) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Platform, validation.Required, validation.Length(1, 32)),
		validation.Field(&l.URL, validation.Required, is.URL),
	)
}

// SocialPayload 社交链接块。
type SocialPayload struct {
	Links      []SocialLink `json:"links"`
	ShowLabels bool         `json:"show_labels"`
}

func (SocialPayload) Kind() Kind { return KindSocial }

func (p SocialPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Links, validation.Length(0, 32)),
	)
}

func (p SocialPayload) clone() Payload {
	if p.Links != nil {
		links := make([]SocialLink, len(p.Links))
		copy(links, p.Links)
		p.Links = links
	}
	return p
}

// VideoPayload 视频块。
type VideoPayload struct {
	URL      string `json:"url"`
	Autoplay bool   `json:"autoplay"`
	Muted    bool   `json:"muted"`
}

func (VideoPayload) Kind() Kind { return KindVideo }

func (p VideoPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.URL, validation.Required, is.URL),
	)
}

func (p VideoPayload) clone() Payload { return p }

// ProjectsPayload 项目列表块。
type ProjectsPayload struct {
	ProjectIDs []string `json:"project_ids"`
	ShowImages bool     `json:"show_images"`
	ShowLinks  bool     `json:"show_links"`
}

func (ProjectsPayload) Kind() Kind { return KindProjects }

func (p ProjectsPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProjectIDs, validation.Length(0, maxRefs), validation.Each(validation.Required)),
	)
}

func (p ProjectsPayload) clone() Payload {
	p.ProjectIDs = cloneStrings(p.ProjectIDs)
	return p
}

// ExperiencePayload 工作经历块。
type ExperiencePayload struct {
	ExperienceIDs []string `json:"experience_ids"`
	ShowDates     bool     `json:"show_dates"`
}

func (ExperiencePayload) Kind() Kind { return KindExperience }

func (p ExperiencePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ExperienceIDs, validation.Length(0, maxRefs), validation.Each(validation.Required)),
	)
}

func (p ExperiencePayload) clone() Payload {
	p.ExperienceIDs = cloneStrings(p.ExperienceIDs)
	return p
}

// EducationPayload 教育经历块。
type EducationPayload struct {
	EducationIDs []string `json:"education_ids"`
	ShowDates    bool     `json:"show_dates"`
}

func (EducationPayload) Kind() Kind { return KindEducation }

func (p EducationPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.EducationIDs, validation.Length(0, maxRefs), validation.Each(validation.Required)),
	)
}

func (p EducationPayload) clone() Payload {
	p.EducationIDs = cloneStrings(p.EducationIDs)
	return p
}

// HobbiesPayload 兴趣爱好块。
type HobbiesPayload struct {
	Items []string `json:"items"`
}

func (HobbiesPayload) Kind() Kind { return KindHobbies }

func (p HobbiesPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Items, validation.Length(0, 50), validation.Each(validation.Required, validation.Length(1, 64))),
	)
}

func (p HobbiesPayload) clone() Payload {
	p.Items = cloneStrings(p.Items)
	return p
}

// ResumePayload 简历下载块。
type ResumePayload struct {
	FileURL      string `json:"file_url"`
	Label        string `json:"label"`
	ShowDownload bool   `json:"show_download"`
}

func (ResumePayload) Kind() Kind { return KindResume }

func (p ResumePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FileURL, validation.Required, is.URL),
		validation.Field(&p.Label, validation.Length(0, 120)),
	)
}

func (p ResumePayload) clone() Payload { return p }

// Decode 按 kind 解析原始 JSON，未知字段视为形状不匹配。
// 这是唯一按类型分派的地方。
func Decode(kind Kind, raw json.RawMessage) (Payload, error) {
	var target Payload
	switch kind {
	case KindText:
		target = &TextPayload{}
	case KindImage:
		target = &ImagePayload{}
	case KindSkills:
		target = &SkillsPayload{}
	case KindSocial:
		target = &SocialPayload{}
	case KindVideo:
		target = &VideoPayload{}
	case KindProjects:
		target = &ProjectsPayload{}
	case KindExperience:
		target = &ExperiencePayload{}
	case KindEducation:
		target = &EducationPayload{}
	case KindHobbies:
		target = &HobbiesPayload{}
	case KindResume:
		target = &ResumePayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, kind, err)
		}
	}

	payload := deref(target)
	if err := Check(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Check 校验 payload 并统一包装为 ErrInvalidPayload。
func Check(p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, p.Kind(), err)
	}
	return nil
}

// Clone 深拷贝 payload。
func Clone(p Payload) Payload {
	if p == nil {
		return nil
	}
	return p.clone()
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *TextPayload:
		return *v
	case *ImagePayload:
		return *v
	case *SkillsPayload:
		return *v
	case *SocialPayload:
		return *v
	case *VideoPayload:
		return *v
	case *ProjectsPayload:
		return *v
	case *ExperiencePayload:
		return *v
	case *EducationPayload:
		return *v
	case *HobbiesPayload:
		return *v
	case *ResumePayload:
		return *v
	}
	return p
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
