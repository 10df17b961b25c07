package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phFolio/internal/block"
	"phFolio/internal/editor"
	"phFolio/internal/layout"
	"phFolio/internal/page"
)

// fakeAPI 模拟 /v1/page 相关接口。
type fakeAPI struct {
	mu     sync.Mutex
	doc    page.Document
	nextID int
	auth   []string
	fail   int
}

func (a *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.auth = append(a.auth, r.Header.Get("Authorization"))
	if a.fail != 0 {
		w.WriteHeader(a.fail)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "boom", "code": 5000})
		return
	}

	switch r.Method + " " + r.URL.Path {
	case "GET /v1/page":
		_ = json.NewEncoder(w).Encode(a.doc)
	case "PUT /v1/page":
		var doc page.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
			return
		}
		a.doc = doc
		_ = json.NewEncoder(w).Encode(map[string]int{"deleted": 0})
	case "POST /v1/page/blocks":
		var b block.Block
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.nextID++
		b.ID = fmt.Sprintf("srv-%d", a.nextID)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(b)
	case "GET /v1/editor/config":
		_ = json.NewEncoder(w).Encode(map[string]any{"history_limit": 30, "defaults": layout.DefaultProfiles()})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "tok-1", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("  ", "tok")
	assert.Error(t, err)
}

func TestClient_RoundTrip(t *testing.T) {
	api := &fakeAPI{doc: page.Empty()}
	c := newTestClient(t, api)
	ctx := context.Background()

	draft, err := block.New(block.TextPayload{Variant: "heading", Text: block.LocalizedText{EN: "hi"}}, layout.Desktop)
	require.NoError(t, err)
	created, err := c.CreateBlock(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.Equal(t, draft.Payload, created.Payload)

	doc := page.Empty()
	doc.Blocks = []block.Block{created}
	doc.Layouts[layout.Desktop] = layout.List{{BlockID: created.ID, W: 6, H: 2}}
	require.NoError(t, c.Save(ctx, doc))

	loaded, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Blocks, 1)
	assert.Equal(t, doc.Layouts, loaded.Layouts)

	c.SetToken("tok-2")
	cfg, err := c.EditorConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.HistoryLimit)

	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-1", "Bearer tok-1", "Bearer tok-2"}, api.auth)
}

func TestClient_StatusError(t *testing.T) {
	c := newTestClient(t, &fakeAPI{fail: http.StatusInternalServerError})

	err := c.Save(context.Background(), page.Empty())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, 5000, se.Code)
	assert.Equal(t, "boom", se.Message)
}

func TestClient_LoadFillsMissingMaps(t *testing.T) {
	c := newTestClient(t, &fakeAPI{doc: page.Document{}})

	doc, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, layout.DefaultProfiles(), doc.GridSettings)
	assert.NotNil(t, doc.Layouts)
}

func TestClient_DrivesEditorSession(t *testing.T) {
	api := &fakeAPI{doc: page.Empty()}
	c := newTestClient(t, api)
	ctx := context.Background()

	s := editor.New(c)
	require.NoError(t, s.Load(ctx))
	_, err := s.NewBlock(block.HobbiesPayload{Items: []string{"chess"}})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx))

	require.Len(t, api.doc.Blocks, 1)
	assert.False(t, block.IsDraft(api.doc.Blocks[0].ID))
	assert.False(t, s.IsDirty())
}
