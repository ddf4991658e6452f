package controller

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare/internal/models"
)

type memoryTasks struct {
	mu       sync.Mutex
	tasks    []models.CareTask
	species  map[string]string
	listErr  error
	listHits int
}

func (m *memoryTasks) ListCareTasks(_ context.Context, userID, listingID string) ([]models.CareTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listHits++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []models.CareTask{}
	for _, t := range m.tasks {
		if t.UserID == userID && (listingID == "" || t.ListingID == listingID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryTasks) SetCareTaskCompleted(_ context.Context, id, userID string, completed bool, now time.Time) (*models.CareTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id && m.tasks[i].UserID == userID {
			m.tasks[i].SetCompleted(completed, now)
			t := m.tasks[i]
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryTasks) SpeciesByListing(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if s, ok := m.species[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

type memoryCache struct {
	entries     map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, userID, listingID string) ([]byte, bool) {
	b, ok := c.entries[userID+"|"+listingID]
	return b, ok
}

func (c *memoryCache) Set(_ context.Context, userID, listingID string, b []byte) {
	c.entries[userID+"|"+listingID] = b
}

func (c *memoryCache) InvalidateUserTasks(_ context.Context, userID string) {
	c.invalidated = append(c.invalidated, userID)
	for k := range c.entries {
		if strings.HasPrefix(k, userID+"|") {
			delete(c.entries, k)
		}
	}
}

var calendarNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func seedTasks() *memoryTasks {
	return &memoryTasks{
		tasks: []models.CareTask{
			{ID: "t1", UserID: "user-1", ListingID: "fern", Title: "Water", DueDate: calendarNow.AddDate(0, 0, -1)},
			{ID: "t2", UserID: "user-1", ListingID: "fern", Title: "Mist", DueDate: calendarNow.AddDate(0, 0, 9)},
			{ID: "t3", UserID: "user-1", ListingID: "cactus", Title: "Check the soil", DueDate: calendarNow},
			{ID: "t4", UserID: "user-2", ListingID: "fern", Title: "Water", DueDate: calendarNow.AddDate(0, 0, -1)},
		},
		species: map[string]string{"fern": "Boston Fern"},
	}
}

// asUser stands in for the auth middleware.
func asUser(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid != "" {
			c.Set("user", uid)
		}
		c.Next()
	}
}

func calendarRouter(h *CareTasks, uid string) *gin.Engine {
	r := gin.New()
	r.Use(asUser(uid))
	r.GET("/care-tasks", h.List)
	r.GET("/care-tasks/today", h.Today)
	r.PATCH("/care-tasks/:id", h.SetCompleted)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCareTasks_List(t *testing.T) {
	store := seedTasks()
	cache := newMemoryCache()
	h := &CareTasks{Store: store, Cache: cache, Now: func() time.Time { return calendarNow }}
	r := calendarRouter(h, "user-1")

	w := do(r, http.MethodGet, "/care-tasks", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got []models.CareTask
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	var ids []string
	for _, task := range got {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids)

	// Second read is served from cache.
	w = do(r, http.MethodGet, "/care-tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.listHits)
}

func TestCareTasks_ListByListing(t *testing.T) {
	h := &CareTasks{Store: seedTasks()}
	r := calendarRouter(h, "user-1")

	w := do(r, http.MethodGet, "/care-tasks?listing_id=cactus", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got []models.CareTask
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "t3", got[0].ID)
}

func TestCareTasks_ListEmptyIsArray(t *testing.T) {
	h := &CareTasks{Store: seedTasks()}
	r := calendarRouter(h, "nobody")

	w := do(r, http.MethodGet, "/care-tasks", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCareTasks_ListStoreError(t *testing.T) {
	store := seedTasks()
	store.listErr = errors.New("db down")
	h := &CareTasks{Store: store}

	w := do(calendarRouter(h, "user-1"), http.MethodGet, "/care-tasks", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCareTasks_Unauthorized(t *testing.T) {
	h := &CareTasks{Store: seedTasks()}
	r := calendarRouter(h, "")

	for _, req := range [][2]string{
		{http.MethodGet, "/care-tasks"},
		{http.MethodGet, "/care-tasks/today"},
		{http.MethodPatch, "/care-tasks/t1"},
	} {
		w := do(r, req[0], req[1], `{"completed":true}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, req[1])
	}
}

func TestCareTasks_Today(t *testing.T) {
	h := &CareTasks{Store: seedTasks(), Now: func() time.Time { return calendarNow }}

	w := do(calendarRouter(h, "user-1"), http.MethodGet, "/care-tasks/today", "")

	require.Equal(t, http.StatusOK, w.Code)
	var got []models.PlantCareSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	type summary struct {
		Listing, Species string
		Tasks            int
	}
	var short []summary
	for _, p := range got {
		short = append(short, summary{p.ListingID, p.Species, len(p.Tasks)})
	}
	want := []summary{{"fern", "Boston Fern", 1}, {"cactus", "Unknown Plant", 1}}
	if diff := cmp.Diff(want, short); diff != "" {
		t.Errorf("today mismatch (-want +got):\n%s", diff)
	}
}

func TestCareTasks_SetCompleted(t *testing.T) {
	store := seedTasks()
	cache := newMemoryCache()
	cache.Set(context.Background(), "user-1", "", []byte(`[]`))
	h := &CareTasks{Store: store, Cache: cache, Now: func() time.Time { return calendarNow }}
	r := calendarRouter(h, "user-1")

	w := do(r, http.MethodPatch, "/care-tasks/t1", `{"completed":true}`)

	require.Equal(t, http.StatusOK, w.Code)
	var task models.CareTask
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.True(t, task.Completed)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, calendarNow.Equal(*task.CompletedAt))
	assert.Equal(t, []string{"user-1"}, cache.invalidated)
	_, cached := cache.Get(context.Background(), "user-1", "")
	assert.False(t, cached)

	w = do(r, http.MethodPatch, "/care-tasks/t1", `{"completed":false}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.False(t, task.Completed)
	assert.Nil(t, task.CompletedAt)
}

func TestCareTasks_SetCompletedErrors(t *testing.T) {
	h := &CareTasks{Store: seedTasks()}
	r := calendarRouter(h, "user-1")

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/care-tasks/t4", `{"completed":true}`).Code, "other user's task")
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/care-tasks/missing", `{"completed":true}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/care-tasks/t1", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/care-tasks/t1", `not json`).Code)
}
