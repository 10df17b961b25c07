package block

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 是内容块类型的封闭枚举。
type Kind string

const (
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindSkills     Kind = "skills"
	KindSocial     Kind = "social"
	KindVideo      Kind = "video"
	KindProjects   Kind = "projects"
	KindExperience Kind = "experience"
	KindEducation  Kind = "education"
	KindHobbies    Kind = "hobbies"
	KindResume     Kind = "resume"
)

var (
	ErrUnknownKind    = errors.New("unknown block kind")
	ErrInvalidPayload = errors.New("invalid block payload")
	ErrKindMismatch   = errors.New("payload does not match block kind")
)

// Kinds 返回全部块类型。
func Kinds() []Kind {
	return []Kind{
		KindText, KindImage, KindSkills, KindSocial, KindVideo,
		KindProjects, KindExperience, KindEducation, KindHobbies, KindResume,
	}
}

// ParseKind 将字符串解析为 Kind，未知类型返回 ErrUnknownKind。
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

func (k Kind) String() string { return string(k) }
