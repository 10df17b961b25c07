package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phFolio/internal/layout"
	"phFolio/internal/pagestore"
	"phFolio/internal/render"
)

type countingPages struct {
	calls int
	pages map[string]render.Page
	err   error
}

func (p *countingPages) Public(_ context.Context, slug string, device layout.Device) (render.Page, error) {
	p.calls++
	if p.err != nil {
		return render.Page{}, p.err
	}
	pg, ok := p.pages[slug]
	if !ok {
		return render.Page{}, pagestore.ErrAccountNotFound
	}
	pg.Device = device
	return pg, nil
}

func newPublicRouter(h *PublicHandler) *gin.Engine {
	r := gin.New()
	r.GET("/v1/public/:slug", h.GetPage)
	return r
}

func getPublic(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestPublicHandler_CachesRenderedPage(t *testing.T) {
	pages := &countingPages{pages: map[string]render.Page{
		"ada": {Grid: layout.DefaultProfile(layout.Mobile), Items: []render.Item{}},
	}}
	rdb := newFakeRedis()
	r := newPublicRouter(NewPublicHandler(pages, rdb, time.Minute))

	first := getPublic(r, "/v1/public/ada?device=mobile")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, 1, pages.calls)
	assert.True(t, rdb.has(publicCacheKey("ada", layout.Mobile)))
	assert.Equal(t, time.Minute, rdb.ttls[publicCacheKey("ada", layout.Mobile)])

	second := getPublic(r, "/v1/public/ada?device=mobile")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, pages.calls, "second request must be served from cache")
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var got render.Page
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &got))
	assert.Equal(t, layout.Mobile, got.Device)

	getPublic(r, "/v1/public/ada")
	assert.Equal(t, 2, pages.calls, "devices are cached separately")
}

func TestPublicHandler_WithoutCache(t *testing.T) {
	pages := &countingPages{pages: map[string]render.Page{"ada": {}}}
	rdb := newFakeRedis()
	r := newPublicRouter(NewPublicHandler(pages, rdb, 0))

	getPublic(r, "/v1/public/ada")
	getPublic(r, "/v1/public/ada")
	assert.Equal(t, 2, pages.calls)
	assert.Empty(t, rdb.values)
}

func TestPublicHandler_CacheErrorFallsBackToStore(t *testing.T) {
	pages := &countingPages{pages: map[string]render.Page{"ada": {}}}
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")
	r := newPublicRouter(NewPublicHandler(pages, rdb, time.Minute))

	w := getPublic(r, "/v1/public/ada")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, pages.calls)
}

func TestPublicHandler_Errors(t *testing.T) {
	pages := &countingPages{pages: map[string]render.Page{}}
	r := newPublicRouter(NewPublicHandler(pages, newFakeRedis(), time.Minute))

	assert.Equal(t, http.StatusNotFound, getPublic(r, "/v1/public/nobody").Code)
	assert.Equal(t, http.StatusBadRequest, getPublic(r, "/v1/public/ada?device=watch").Code)

	pages.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, getPublic(r, "/v1/public/ada").Code)
}

func TestPublicCacheKeys(t *testing.T) {
	assert.Equal(t, []string{"public:page:ada:desktop", "public:page:ada:mobile"}, publicCacheKeys("ada"))
}
