package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/middleware"
	"github.com/atinyakov/GophMaps/internal/models"
	"github.com/atinyakov/GophMaps/internal/service"
)

// ItemService defines the content operations required by the ItemHandler.
type ItemService interface {
	Create(ctx context.Context, owner string, in models.Item) (*models.Item, error)
	UpdateData(ctx context.Context, owner, id string, data []byte) error
	Delete(ctx context.Context, owner, id string) error
	Get(ctx context.Context, requester, id string) (*models.Item, error)
	List(ctx context.Context, owner string) ([]models.Item, error)
}

// ItemHandler handles HTTP requests for portal items.
type ItemHandler struct {
	ItemService ItemService
	// Log receives internal errors. May be nil.
	Log *zap.Logger
}

// AddItemRequest is the payload of POST /content/users/{user}/addItem.
type AddItemRequest struct {
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Folder      string          `json:"folder"`
	Extent      json.RawMessage `json:"extent"`
	Access      models.Access   `json:"access"`
	Text        json.RawMessage `json:"text"`
}

// UpdateItemRequest is the payload of POST /content/users/{user}/items/{id}/update.
type UpdateItemRequest struct {
	Text json.RawMessage `json:"text"`
}

type itemResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Folder  string `json:"folder,omitempty"`
}

// RequireOwner rejects requests whose {user} path segment is not the
// authenticated user.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "user") != middleware.GetUserIDFromContext(r.Context()) {
			writeError(w, nil, service.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Create handles POST /content/users/{user}/addItem.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}
	if req.Type != "" && req.Type != models.WebMap {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}
	extent := req.Extent
	if string(extent) == "null" {
		extent = nil
	}

	owner := middleware.GetUserIDFromContext(r.Context())
	it, err := h.ItemService.Create(r.Context(), owner, models.Item{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Folder:      req.Folder,
		Extent:      extent,
		Access:      req.Access,
		Data:        req.Text,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResult{Success: true, ID: it.ID, Folder: it.Folder})
}

// Update handles POST /content/users/{user}/items/{id}/update. Only the item
// data is replaced.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Log, service.ErrInvalidInput)
		return
	}
	id := chi.URLParam(r, "id")
	owner := middleware.GetUserIDFromContext(r.Context())
	if err := h.ItemService.UpdateData(r.Context(), owner, id, req.Text); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResult{Success: true, ID: id})
}

// Delete handles POST /content/users/{user}/items/{id}/delete.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	owner := middleware.GetUserIDFromContext(r.Context())
	if err := h.ItemService.Delete(r.Context(), owner, id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "itemId": id})
}

// List handles GET /content/users/{user}/items.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.ItemService.List(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(items), "items": items})
}

// Get handles GET /content/items/{id} and returns the item description.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.ItemService.Get(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// Data handles GET /content/items/{id}/data and returns the item content.
func (h *ItemHandler) Data(w http.ResponseWriter, r *http.Request) {
	it, err := h.ItemService.Get(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(it.Data)
}
