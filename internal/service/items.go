package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atinyakov/GophMaps/internal/models"
)

// ItemRepository defines the persistence operations needed by the ItemService.
type ItemRepository interface {
	// CreateItem inserts a new item.
	CreateItem(ctx context.Context, it models.Item) error
	// UpdateItemData replaces the data of a live item owned by owner and
	// reports whether one matched.
	UpdateItemData(ctx context.Context, owner, id string, data []byte, modified int64) (bool, error)
	// SoftDeleteItem marks a live item owned by owner as deleted and
	// reports whether one matched.
	SoftDeleteItem(ctx context.Context, owner, id string, modified int64) (bool, error)
	// GetItem returns a live item or nil.
	GetItem(ctx context.Context, id string) (*models.Item, error)
	// ListItems returns the live items of owner.
	ListItems(ctx context.Context, owner string) ([]models.Item, error)
}

// ItemService implements portal content operations.
type ItemService struct {
	repo  ItemRepository
	now   func() time.Time
	newID func() string
}

// NewItemService constructs an ItemService with the provided ItemRepository.
func NewItemService(repo ItemRepository) *ItemService {
	return &ItemService{
		repo: repo,
		now:  time.Now,
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// Create stores in as a new item of owner and returns it with its id set.
func (s *ItemService) Create(ctx context.Context, owner string, in models.Item) (*models.Item, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = models.WebMap
	}
	if !json.Valid(in.Data) {
		return nil, fmt.Errorf("%w: item data must be JSON", ErrInvalidInput)
	}
	if len(in.Extent) > 0 && !json.Valid(in.Extent) {
		return nil, fmt.Errorf("%w: extent must be JSON", ErrInvalidInput)
	}
	switch in.Access {
	case "":
		in.Access = models.AccessPrivate
	case models.AccessPrivate, models.AccessPublic:
	default:
		return nil, fmt.Errorf("%w: unknown access %q", ErrInvalidInput, in.Access)
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}

	now := s.now().UnixMilli()
	in.ID = s.newID()
	in.Owner = owner
	in.Created = now
	in.Modified = now
	in.Deleted = false

	if err := s.repo.CreateItem(ctx, in); err != nil {
		return nil, err
	}
	return &in, nil
}

// UpdateData replaces the data of an item owned by owner.
func (s *ItemService) UpdateData(ctx context.Context, owner, id string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: item data must be JSON", ErrInvalidInput)
	}
	ok, err := s.repo.UpdateItemData(ctx, owner, id, data, s.now().UnixMilli())
	if err != nil {
		return err
	}
	if !ok {
		return s.missing(ctx, id)
	}
	return nil
}

// Delete soft-deletes an item owned by owner.
func (s *ItemService) Delete(ctx context.Context, owner, id string) error {
	ok, err := s.repo.SoftDeleteItem(ctx, owner, id, s.now().UnixMilli())
	if err != nil {
		return err
	}
	if !ok {
		return s.missing(ctx, id)
	}
	return nil
}

// missing tells apart an absent item from one that belongs to someone else.
func (s *ItemService) missing(ctx context.Context, id string) error {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if it == nil {
		return ErrNotFound
	}
	return ErrForbidden
}

// Get returns an item. Private items are visible to their owner only; an
// empty requester is anonymous.
func (s *ItemService) Get(ctx context.Context, requester, id string) (*models.Item, error) {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, ErrNotFound
	}
	if it.Access != models.AccessPublic && it.Owner != requester {
		return nil, ErrForbidden
	}
	return it, nil
}

// List returns the items of owner, newest first.
func (s *ItemService) List(ctx context.Context, owner string) ([]models.Item, error) {
	return s.repo.ListItems(ctx, owner)
}
