package storage

import (
	"encoding/json"
	"time"

	"github.com/atinyakov/GophMaps/internal/mapping"
)

// State is what the client keeps between runs.
type State struct {
	Map        json.RawMessage   `json:"map,omitempty"`  // web map document
	Item       *mapping.ItemRef  `json:"item,omitempty"` // portal item the map is saved as
	Credential *SealedCredential `json:"credential,omitempty"`
	Version    int64             `json:"version"` // unix time of the last write
}

// SealedCredential is a portal credential whose token is encrypted at rest.
type SealedCredential struct {
	ServiceURL string    `json:"serviceUrl"`
	Username   string    `json:"username"`
	Token      string    `json:"token"` // base64-encoded encrypted token
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}
