// AngelaMos | 2026
// handler_test.go

package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/middleware"
)

type item struct {
	ID       string
	Title    string
	Genre    string
	IsActive bool
	Seq      int
}

func (i item) GetID() string { return i.ID }
func (i item) Active() bool  { return i.IsActive }

type itemView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Genre    string `json:"genre"`
	IsActive bool   `json:"is_active"`
}

type memStore struct {
	mu    sync.Mutex
	items []item
	reads int
}

func (s *memStore) filter(q ListQuery) []item {
	out := make([]item, 0, len(s.items))
	needle := strings.ToLower(q.Search)
	for _, it := range s.items {
		if q.Active != nil && it.IsActive != *q.Active {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.Title), needle) &&
			!strings.Contains(strings.ToLower(it.Genre), needle) {
			continue
		}
		out = append(out, it)
	}
	slices.SortStableFunc(out, func(a, b item) int {
		if q.Order == "title" {
			return strings.Compare(a.Title, b.Title)
		}
		return a.Seq - b.Seq
	})
	return out
}

func (s *memStore) Count(_ context.Context, q ListQuery) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return len(s.filter(q)), nil
}

func (s *memStore) List(_ context.Context, q ListQuery) ([]item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	all := s.filter(q)
	if q.Offset >= len(all) {
		return nil, nil
	}
	end := min(q.Offset+q.Limit, len(all))
	return all[q.Offset:end], nil
}

func (s *memStore) Get(_ context.Context, id string) (item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return item{}, core.ErrNotFound
}

func (s *memStore) SetActive(_ context.Context, id string, active bool) (item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID != id {
			continue
		}
		if it.IsActive == active {
			if active {
				return it, ErrAlreadyActive
			}
			return it, ErrAlreadyInactive
		}
		s.items[i].IsActive = active
		return s.items[i], nil
	}
	return item{}, core.ErrNotFound
}

func (s *memStore) add(title, genre string, active bool) item {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := item{
		ID:       uuid.NewString(),
		Title:    title,
		Genre:    genre,
		IsActive: active,
		Seq:      len(s.items),
	}
	s.items = append(s.items, it)
	return it
}

type itemInput struct {
	Title *string `json:"title"`
	Genre *string `json:"genre"`
}

type itemSerializer struct {
	store *memStore
}

func (s itemSerializer) validate(in itemInput, selfID string) error {
	verr := core.NewValidationError()
	if in.Title == nil || *in.Title == "" {
		verr.Add("title", "This field is required.")
		return verr
	}
	for _, it := range s.store.items {
		if it.Title == *in.Title && it.ID != selfID {
			verr.Add(core.NonFieldErrors, "This item already exists")
		}
	}
	return verr.ErrOrNil()
}

func (s itemSerializer) Create(_ context.Context, body []byte) (item, error) {
	var in itemInput
	if err := core.UnmarshalJSON(body, &in); err != nil {
		return item{}, err
	}
	if err := s.validate(in, ""); err != nil {
		return item{}, err
	}
	genre := ""
	if in.Genre != nil {
		genre = *in.Genre
	}
	return s.store.add(*in.Title, genre, true), nil
}

func (s itemSerializer) Update(_ context.Context, existing item, body []byte) (item, error) {
	in := itemInput{Title: &existing.Title, Genre: &existing.Genre}
	if err := core.UnmarshalJSON(body, &in); err != nil {
		return item{}, err
	}
	if err := s.validate(in, existing.ID); err != nil {
		return item{}, err
	}
	for i, it := range s.store.items {
		if it.ID == existing.ID {
			s.store.items[i].Title = *in.Title
			s.store.items[i].Genre = *in.Genre
			return s.store.items[i], nil
		}
	}
	return item{}, core.ErrNotFound
}

func (itemSerializer) Represent(_ context.Context, it item) itemView {
	return itemView{ID: it.ID, Title: it.Title, Genre: it.Genre, IsActive: it.IsActive}
}

type spyCache struct {
	invalidated []string
}

func (c *spyCache) Middleware(string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

func (c *spyCache) Invalidate(_ context.Context, resource string) error {
	c.invalidated = append(c.invalidated, resource)
	return nil
}

type fixture struct {
	store  *memStore
	cache  *spyCache
	router chi.Router
}

func newFixture(t *testing.T, perms Permissions) *fixture {
	t.Helper()

	store := &memStore{}
	spy := &spyCache{}
	h := NewHandler(Config[item, itemView]{
		Descriptor: Descriptor{
			Name:         "Item",
			Searchable:   []string{"title", "genre"},
			Sortable:     []string{"title", "created_at"},
			DefaultOrder: "created_at",
		},
		Store:       store,
		Serializer:  itemSerializer{store: store},
		Permissions: perms,
		Cache:       spy,
		PageSize:    2,
	})

	r := chi.NewRouter()
	h.Mount(r, "/items", "/items/{id}")

	return &fixture{store: store, cache: spy, router: r}
}

func openPerms() Permissions {
	return Permissions{
		List: AllowAny, Create: AllowAny, Retrieve: AllowAny,
		Activate: AllowAny, Update: AllowAny, Delete: AllowAny,
	}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Count    int        `json:"count"`
	Next     *string    `json:"next"`
	Previous *string    `json:"previous"`
	Results  []itemView `json:"results"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listBody {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListActiveFilter(t *testing.T) {
	f := newFixture(t, openPerms())
	for _, title := range []string{"a", "b", "c"} {
		f.store.add(title, "", true)
	}
	f.store.add("d", "", false)
	f.store.add("e", "", false)

	body := decodeList(t, f.do(http.MethodGet, "/items?active=TRUE&page_size=10", ""))
	assert.Equal(t, 3, body.Count)
	assert.Len(t, body.Results, 3)

	body = decodeList(t, f.do(http.MethodGet, "/items?active=nope&page_size=10", ""))
	assert.Equal(t, 2, body.Count)

	body = decodeList(t, f.do(http.MethodGet, "/items?page_size=10", ""))
	assert.Equal(t, 5, body.Count)
}

func TestListSearchAndOrder(t *testing.T) {
	f := newFixture(t, openPerms())
	f.store.add("The Matrix", "scifi", true)
	f.store.add("Alien", "SciFi horror", true)
	f.store.add("Amelie", "romance", true)

	body := decodeList(t, f.do(http.MethodGet, "/items?query=SCIFI&order=title", ""))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "Alien", body.Results[0].Title)
	assert.Equal(t, "The Matrix", body.Results[1].Title)

	body = decodeList(t, f.do(http.MethodGet, "/items?order=bogus&page_size=5", ""))
	require.Len(t, body.Results, 3)
	assert.Equal(t, "The Matrix", body.Results[0].Title)
}

func TestListPagination(t *testing.T) {
	f := newFixture(t, openPerms())
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		f.store.add(title, "", true)
	}

	body := decodeList(t, f.do(http.MethodGet, "/items?page=3", ""))
	assert.Equal(t, 5, body.Count)
	assert.Len(t, body.Results, 1)
	assert.Nil(t, body.Next)
	require.NotNil(t, body.Previous)
	assert.Contains(t, *body.Previous, "page=2")

	rec := f.do(http.MethodGet, "/items?page=4", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid page."}`, rec.Body.String())
}

func TestListEmptyPage(t *testing.T) {
	f := newFixture(t, openPerms())

	body := decodeList(t, f.do(http.MethodGet, "/items?page=9", ""))
	assert.Equal(t, 0, body.Count)
	assert.Empty(t, body.Results)
	assert.Nil(t, body.Next)
	assert.Nil(t, body.Previous)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, openPerms())

	rec := f.do(http.MethodPost, "/items", `{"title":"Matrix","genre":"scifi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created itemView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Matrix", created.Title)
	assert.True(t, created.IsActive)
	assert.Equal(t, []string{"item"}, f.cache.invalidated)

	got := f.do(http.MethodGet, "/items/"+created.ID, "")
	require.Equal(t, http.StatusOK, got.Code)
	var fetched itemView
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &fetched))
	assert.Equal(t, created, fetched)

	rec = f.do(http.MethodPost, "/items", `{"title":"Matrix"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"non_field_errors":["This item already exists"]}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/items", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"title":["This field is required."]}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/items", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.cache.invalidated, 1)
}

func TestRetrieveNotFound(t *testing.T) {
	f := newFixture(t, openPerms())

	rec := f.do(http.MethodGet, "/items/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found."}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/items/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSoftDeleteAndReactivate(t *testing.T) {
	f := newFixture(t, openPerms())
	it := f.store.add("Matrix", "", true)
	path := "/items/" + it.ID

	rec := f.do(http.MethodPost, path, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"This Item is active"}`, rec.Body.String())

	rec = f.do(http.MethodDelete, path, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)

	for range 2 {
		rec = f.do(http.MethodDelete, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"message":"This Item is inactive"}`, rec.Body.String())
	}

	rec = f.do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":true`)

	assert.Equal(t, []string{"item", "item"}, f.cache.invalidated)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, openPerms())
	it := f.store.add("Matrix", "scifi", false)
	f.store.add("Alien", "horror", true)

	rec := f.do(http.MethodPut, "/items/"+it.ID, `{"genre":"cyberpunk"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"genre":"cyberpunk"`)
	assert.Contains(t, rec.Body.String(), `"title":"Matrix"`)

	rec = f.do(http.MethodPatch, "/items/"+it.ID, `{"title":"Matrix"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(http.MethodPut, "/items/"+it.ID, `{"title":"Alien"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"item", "item"}, f.cache.invalidated)
}

func TestPermissionShortCircuits(t *testing.T) {
	f := newFixture(t, Permissions{
		List:     AllowAny,
		Create:   IsAuthenticated,
		Retrieve: IsStaff,
		Activate: IsAuthenticated,
		Update:   HasRole(middleware.RoleModerator),
		Delete:   IsAuthenticated,
	})
	it := f.store.add("Matrix", "", true)
	path := "/items/" + it.ID
	f.store.reads = 0

	rec := f.do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t,
		`{"detail":"Authentication credentials were not provided.","code":"not_authenticated"}`,
		rec.Body.String(),
	)

	rec = f.do(http.MethodPost, "/items", `{"title":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, f.store.reads)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{
		UserID: "u1",
		Role:   middleware.RoleCustomer,
	}))
	out := httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusForbidden, out.Code)
	assert.Zero(t, f.store.reads)

	req = httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"genre":"x"}`))
	req = req.WithContext(middleware.WithClaims(req.Context(), &middleware.AccessTokenClaims{
		UserID: "u2",
		Role:   middleware.RoleModerator,
	}))
	out = httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusAccepted, out.Code)
}

func TestNilPermissionDenies(t *testing.T) {
	f := newFixture(t, Permissions{List: AllowAny})

	rec := f.do(http.MethodPost, "/items", `{"title":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDescriptorOrderBy(t *testing.T) {
	d := Descriptor{Sortable: []string{"title", "created_at"}, DefaultOrder: "created_at"}

	assert.Equal(t, "title", d.OrderBy("title"))
	assert.Equal(t, "created_at", d.OrderBy(""))
	assert.Equal(t, "created_at", d.OrderBy("title; DROP TABLE movies"))
}

func TestParseActive(t *testing.T) {
	assert.Nil(t, ParseActive("", false))
	assert.True(t, *ParseActive("True", true))
	assert.False(t, *ParseActive("false", true))
	assert.False(t, *ParseActive("1", true))
	assert.False(t, *ParseActive("", true))
}
