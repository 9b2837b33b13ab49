package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/GophMaps/internal/models"
)

// ItemRepository stores portal items. Tags are kept as a JSON array in a text column.
type ItemRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewItemRepository creates an ItemRepository using the provided *sql.DB.
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{DB: db}
}

const itemColumns = `id, owner, folder, type, title, description, tags, extent, access, data, created, modified, deleted`

// CreateItem inserts a new item.
func (r *ItemRepository) CreateItem(ctx context.Context, it models.Item) error {
	tags, err := json.Marshal(nonNil(it.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false)
	`, it.ID, it.Owner, it.Folder, it.Type, it.Title, it.Description, string(tags),
		nullableJSON(it.Extent), string(it.Access), string(it.Data), it.Created, it.Modified)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// UpdateItemData replaces the data of a live item owned by owner. It reports
// whether such an item existed.
func (r *ItemRepository) UpdateItemData(ctx context.Context, owner, id string, data []byte, modified int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE items SET data = $1, modified = $2
		WHERE id = $3 AND owner = $4 AND deleted = false
	`, string(data), modified, id, owner)
	if err != nil {
		return false, fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update item: %w", err)
	}
	return n > 0, nil
}

// SoftDeleteItem marks a live item as deleted. The cleaner purges it later.
func (r *ItemRepository) SoftDeleteItem(ctx context.Context, owner, id string, modified int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE items SET deleted = true, modified = $1
		WHERE id = $2 AND owner = $3 AND deleted = false
	`, modified, id, owner)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	return n > 0, nil
}

// GetItem returns a live item by id, or nil if there is none.
func (r *ItemRepository) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE id = $1 AND deleted = false
	`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// ListItems returns the live items of owner, newest first.
func (r *ItemRepository) ListItems(ctx context.Context, owner string) ([]models.Item, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE owner = $1 AND deleted = false ORDER BY modified DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*models.Item, error) {
	var (
		it     models.Item
		tags   string
		extent sql.NullString
		access string
		data   string
	)
	if err := s.Scan(&it.ID, &it.Owner, &it.Folder, &it.Type, &it.Title, &it.Description,
		&tags, &extent, &access, &data, &it.Created, &it.Modified, &it.Deleted); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if extent.Valid && extent.String != "" {
		it.Extent = json.RawMessage(extent.String)
	}
	it.Access = models.Access(access)
	it.Data = json.RawMessage(data)
	return &it, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
