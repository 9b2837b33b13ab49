package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/models"
	"github.com/atinyakov/GophMaps/internal/service"
)

type fakeItemService struct {
	CreateFunc     func(ctx context.Context, owner string, in models.Item) (*models.Item, error)
	UpdateDataFunc func(ctx context.Context, owner, id string, data []byte) error
	DeleteFunc     func(ctx context.Context, owner, id string) error
	GetFunc        func(ctx context.Context, requester, id string) (*models.Item, error)
	ListFunc       func(ctx context.Context, owner string) ([]models.Item, error)
}

func (f *fakeItemService) Create(ctx context.Context, owner string, in models.Item) (*models.Item, error) {
	return f.CreateFunc(ctx, owner, in)
}
func (f *fakeItemService) UpdateData(ctx context.Context, owner, id string, data []byte) error {
	return f.UpdateDataFunc(ctx, owner, id, data)
}
func (f *fakeItemService) Delete(ctx context.Context, owner, id string) error {
	return f.DeleteFunc(ctx, owner, id)
}
func (f *fakeItemService) Get(ctx context.Context, requester, id string) (*models.Item, error) {
	return f.GetFunc(ctx, requester, id)
}
func (f *fakeItemService) List(ctx context.Context, owner string) ([]models.Item, error) {
	return f.ListFunc(ctx, owner)
}

type tokenParserFunc func(string) (string, error)

func (f tokenParserFunc) ParseToken(token string) (string, error) { return f(token) }

// tokens accepts "tok-<user>".
var tokens = tokenParserFunc(func(token string) (string, error) {
	if user, ok := strings.CutPrefix(token, "tok-"); ok && user != "" {
		return user, nil
	}
	return "", service.ErrInvalidToken
})

func newTestRouter(items *fakeItemService) http.Handler {
	return NewRouter(
		&AuthHandler{AuthService: &fakeAuthService{}},
		&ItemHandler{ItemService: items},
		tokens,
		zap.NewNop(),
	)
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, RootPath+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, RootPath+path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestItems_AddItem(t *testing.T) {
	var got models.Item
	var gotOwner string
	h := newTestRouter(&fakeItemService{
		CreateFunc: func(_ context.Context, owner string, in models.Item) (*models.Item, error) {
			got, gotOwner = in, owner
			in.ID = "abc123"
			return &in, nil
		},
	})

	body := `{"type":"Web Map","title":"Trails","description":"D","tags":["a","b"],"extent":{"xmin":1,"ymin":2,"xmax":3,"ymax":4,"spatialReference":{"wkid":3857}},"text":{"operationalLayers":[]}}`
	rec := do(t, h, http.MethodPost, "/content/users/alice/addItem", "tok-alice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil || !res.Success || res.ID != "abc123" {
		t.Errorf("unexpected response %s", rec.Body.String())
	}
	if gotOwner != "alice" || got.Title != "Trails" || len(got.Tags) != 2 || string(got.Data) != `{"operationalLayers":[]}` {
		t.Errorf("unexpected item %+v owner %q", got, gotOwner)
	}
	if !strings.Contains(string(got.Extent), `"wkid":3857`) {
		t.Errorf("extent not passed through: %s", got.Extent)
	}
}

func TestItems_AddItemRejected(t *testing.T) {
	h := newTestRouter(&fakeItemService{
		CreateFunc: func(context.Context, string, models.Item) (*models.Item, error) {
			return nil, service.ErrInvalidInput
		},
	})
	tests := []struct {
		name, path, token, body string
		code                    int
	}{
		{"no token", "/content/users/alice/addItem", "", `{"title":"x"}`, http.StatusUnauthorized},
		{"bad token", "/content/users/alice/addItem", "garbage", `{"title":"x"}`, http.StatusUnauthorized},
		{"other user", "/content/users/bob/addItem", "tok-alice", `{"title":"x"}`, http.StatusForbidden},
		{"bad json", "/content/users/alice/addItem", "tok-alice", `{`, http.StatusBadRequest},
		{"wrong type", "/content/users/alice/addItem", "tok-alice", `{"type":"Feature Service","title":"x"}`, http.StatusBadRequest},
		{"service rejects", "/content/users/alice/addItem", "tok-alice", `{"title":""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.token, tt.body)
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestItems_AddItemWrongContentType(t *testing.T) {
	h := newTestRouter(&fakeItemService{})
	req := httptest.NewRequest(http.MethodPost, RootPath+"/content/users/alice/addItem", strings.NewReader(`title=x`))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer tok-alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}
}

func TestItems_Update(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusOK},
		{"missing", service.ErrNotFound, http.StatusNotFound},
		{"not owner", service.ErrForbidden, http.StatusForbidden},
		{"db", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeItemService{
				UpdateDataFunc: func(_ context.Context, owner, id string, data []byte) error {
					if owner != "alice" || id != "abc" || string(data) != `{"v":2}` {
						t.Errorf("unexpected args %q %q %s", owner, id, data)
					}
					return tt.err
				},
			})
			rec := do(t, h, http.MethodPost, "/content/users/alice/items/abc/update", "tok-alice", `{"text":{"v":2}}`)
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "db down") {
				t.Error("internal error text leaked")
			}
		})
	}
}

func TestItems_DeleteAndList(t *testing.T) {
	var deleted string
	h := newTestRouter(&fakeItemService{
		DeleteFunc: func(_ context.Context, _, id string) error {
			deleted = id
			return nil
		},
		ListFunc: func(_ context.Context, owner string) ([]models.Item, error) {
			return []models.Item{{ID: "1", Owner: owner, Title: "A", Type: models.WebMap, Tags: []string{"t"}, Modified: 5, Data: json.RawMessage(`{"secret":1}`)}}, nil
		},
	})

	if rec := do(t, h, http.MethodPost, "/content/users/alice/items/abc/delete", "tok-alice", ""); rec.Code != http.StatusOK || deleted != "abc" {
		t.Errorf("delete: code %d deleted %q", rec.Code, deleted)
	}

	rec := do(t, h, http.MethodGet, "/content/users/alice/items", "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: code %d", rec.Code)
	}
	var out struct {
		Total int           `json:"total"`
		Items []models.Item `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || out.Items[0].Title != "A" || out.Items[0].Modified != 5 {
		t.Errorf("unexpected list %+v", out)
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Error("list must not include item data")
	}
}

func TestItems_GetAndData(t *testing.T) {
	var requesters []string
	h := newTestRouter(&fakeItemService{
		GetFunc: func(_ context.Context, requester, id string) (*models.Item, error) {
			requesters = append(requesters, requester)
			if id != "abc" {
				return nil, service.ErrNotFound
			}
			if requester == "" {
				return nil, service.ErrForbidden
			}
			return &models.Item{ID: id, Owner: "alice", Title: "T", Data: json.RawMessage(`{"baseMap":{}}`)}, nil
		},
	})

	rec := do(t, h, http.MethodGet, "/content/items/abc/data", "tok-alice", "")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"baseMap":{}}` {
		t.Errorf("data: code %d body %q", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, "/content/items/abc", "tok-alice", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"title":"T"`) {
		t.Errorf("get: code %d body %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/content/items/abc/data", "", ""); rec.Code != http.StatusForbidden {
		t.Errorf("anonymous private: code %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/content/items/zzz", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing: code %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/content/items/abc", "broken", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: code %d", rec.Code)
	}
	if len(requesters) != 4 || requesters[0] != "alice" || requesters[2] != "" {
		t.Errorf("unexpected requesters %v", requesters)
	}
}

func TestRouter_Self(t *testing.T) {
	h := newTestRouter(&fakeItemService{})
	rec := do(t, h, http.MethodGet, "/community/self", "tok-carol", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"carol"`) {
		t.Errorf("self: code %d body %q", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/community/self", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous self: code %d", rec.Code)
	}
}
