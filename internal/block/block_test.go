package block

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phFolio/internal/layout"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("carousel")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecode_RejectsShapeOfAnotherKind(t *testing.T) {
	raw := json.RawMessage(`{"skill_ids":["s1"],"show_level":true}`)

	_, err := Decode(KindText, raw)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	p, err := Decode(KindSkills, raw)
	require.NoError(t, err)
	assert.Equal(t, SkillsPayload{SkillIDs: []string{"s1"}, ShowLevel: true}, p)
}

func TestDecode_ValidatesFields(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		raw  string
		ok   bool
	}{
		{"text ok", KindText, `{"variant":"heading","text":{"en":"Hi","ar":"مرحبا"},"align":"center"}`, true},
		{"text bad variant", KindText, `{"variant":"banner"}`, false},
		{"image needs url", KindImage, `{"alt":"me"}`, false},
		{"image ok", KindImage, `{"url":"https://cdn.example.com/a.png","fit":"cover"}`, true},
		{"video bad url", KindVideo, `{"url":"not a url"}`, false},
		{"social link needs platform", KindSocial, `{"links":[{"url":"https://github.com/x"}]}`, false},
		{"hobbies ok", KindHobbies, `{"items":["chess","running"]}`, true},
		{"hobbies empty item", KindHobbies, `{"items":[""]}`, false},
		{"resume ok", KindResume, `{"file_url":"https://cdn.example.com/cv.pdf","show_download":true}`, true},
		{"projects null payload", KindProjects, `null`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.kind, json.RawMessage(tc.raw))
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPayload)
			}
		})
	}
}

func TestNew_AssignsDraftID(t *testing.T) {
	b, err := New(TextPayload{Variant: "paragraph"}, layout.Mobile)
	require.NoError(t, err)

	assert.True(t, IsDraft(b.ID))
	assert.Equal(t, KindText, b.Kind)
	assert.Equal(t, layout.Mobile, b.DeviceAffinity)
	assert.False(t, IsDraft("6c1f2a8e-0000-0000-0000-000000000000"))
}

func TestWithPayload_KindMismatch(t *testing.T) {
	b, err := New(TextPayload{Variant: "paragraph"}, layout.Desktop)
	require.NoError(t, err)

	_, err = b.WithPayload(HobbiesPayload{Items: []string{"x"}})
	assert.ErrorIs(t, err, ErrKindMismatch)

	updated, err := b.WithPayload(TextPayload{Variant: "quote"})
	require.NoError(t, err)
	assert.Equal(t, "quote", updated.Payload.(TextPayload).Variant)
}

func TestBlock_JSONRoundTripKeepsKindTag(t *testing.T) {
	b := Block{
		ID:             "b1",
		Kind:           KindSkills,
		Payload:        SkillsPayload{SkillIDs: []string{"go", "sql"}},
		DeviceAffinity: layout.Desktop,
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b1","kind":"skills","device_affinity":"desktop","payload":{"skill_ids":["go","sql"],"show_level":false,"show_category":false}}`, string(data))

	var decoded Block
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, b, decoded)
}

func TestBlock_UnmarshalRejectsMismatchedPayload(t *testing.T) {
	var b Block
	err := json.Unmarshal([]byte(`{"id":"b1","kind":"image","payload":{"variant":"heading"}}`), &b)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestClone_DoesNotShareSlices(t *testing.T) {
	b := Block{ID: "b1", Kind: KindHobbies, Payload: HobbiesPayload{Items: []string{"a"}}}

	cp := b.Clone()
	cp.Payload.(HobbiesPayload).Items[0] = "changed"

	assert.Equal(t, "a", b.Payload.(HobbiesPayload).Items[0])
}
