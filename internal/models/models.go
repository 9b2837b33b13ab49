// Package models defines the core data structures for portal users and items.
package models

import "encoding/json"

// User represents a portal account.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the login name chosen by the user.
	Username string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
	// Created is the registration time in unix milliseconds.
	Created int64
}

// Access controls who may read an item.
type Access string

const (
	// AccessPrivate items are readable by their owner only.
	AccessPrivate Access = "private"
	// AccessPublic items are readable anonymously.
	AccessPublic Access = "public"
)

// WebMap is the item type of saved maps.
const WebMap = "Web Map"

// Item is a piece of portal content owned by a user.
type Item struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Folder      string          `json:"folder,omitempty"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	Extent      json.RawMessage `json:"extent,omitempty"`
	Access      Access          `json:"access"`
	// Data is the item's content. It is served separately from the description.
	Data json.RawMessage `json:"-"`
	// Created and Modified are unix milliseconds.
	Created  int64 `json:"created"`
	Modified int64 `json:"modified"`
	Deleted  bool  `json:"-"`
}
