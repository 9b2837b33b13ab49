package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atinyakov/GophMaps/internal/client/basemap"
)

// Client holds the map client settings read from a YAML file.
type Client struct {
	// PortalURL is the portal REST root, e.g. https://localhost:8080/sharing/rest.
	PortalURL string `yaml:"portal_url"`
	// BasemapPortalURL serves the public basemap items some basemaps are built from.
	BasemapPortalURL string `yaml:"basemap_portal_url"`
	// ClientID is the registered OAuth client id.
	ClientID string `yaml:"client_id"`
	// RedirectURL is the loopback address the browser returns to.
	RedirectURL string `yaml:"redirect_url"`
	// Tutorial selects the profile: 1 (basemap gallery) or 2 (save to portal).
	Tutorial int `yaml:"tutorial"`
	// CAFile is an extra CA to trust, for a self-signed dev portal.
	CAFile string `yaml:"ca_file"`
	// StateDir holds the session state and its key.
	StateDir string `yaml:"state_dir"`
	// Folder is where new items are created.
	Folder string `yaml:"folder"`
	// TokenExpiration is the token lifetime requested at sign-in.
	TokenExpiration time.Duration `yaml:"token_expiration"`
	LogLevel        string        `yaml:"log_level"`
}

// Profile is the basemap setup of one tutorial.
type Profile struct {
	Catalog     basemap.Catalog
	Start       basemap.Choice
	Reset       basemap.Choice
	SaveEnabled bool
}

// DefaultClient returns the built-in client settings.
func DefaultClient() Client {
	dir := ".gophmaps"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".gophmaps")
	}
	return Client{
		PortalURL:        "http://localhost:8080/sharing/rest",
		BasemapPortalURL: "https://www.arcgis.com/sharing/rest",
		ClientID:         DefaultClientID,
		RedirectURL:      "http://localhost:8765/oauth/callback",
		Tutorial:         2,
		StateDir:         dir,
		TokenExpiration:  2 * time.Hour,
		LogLevel:         "warn",
	}
}

// DefaultClientPath is the config file used when none is given.
func DefaultClientPath() string {
	return filepath.Join(DefaultClient().StateDir, "config.yaml")
}

// LoadClient reads the YAML file at path over the defaults, then applies
// GOPHMAPS_* environment overrides. A missing file is not an error unless
// required is set.
func LoadClient(path string, required bool, getenv func(string) string) (Client, error) {
	c := DefaultClient()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return Client{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return Client{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if v := getenv("GOPHMAPS_PORTAL_URL"); v != "" {
		c.PortalURL = v
	}
	if v := getenv("GOPHMAPS_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := getenv("GOPHMAPS_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := getenv("GOPHMAPS_CA_FILE"); v != "" {
		c.CAFile = v
	}
	if v := getenv("GOPHMAPS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("GOPHMAPS_TUTORIAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Client{}, fmt.Errorf("GOPHMAPS_TUTORIAL: %w", err)
		}
		c.Tutorial = n
	}

	c.PortalURL = strings.TrimRight(c.PortalURL, "/")
	c.BasemapPortalURL = strings.TrimRight(c.BasemapPortalURL, "/")
	return c, c.Validate()
}

// Validate checks the settings needed to start the client.
func (c Client) Validate() error {
	if _, err := c.Profile(); err != nil {
		return err
	}
	if c.StateDir == "" {
		return errors.New("state_dir is required")
	}
	if c.Tutorial == 2 {
		if c.PortalURL == "" || c.ClientID == "" || c.RedirectURL == "" {
			return errors.New("portal_url, client_id and redirect_url are required to save maps")
		}
	}
	return nil
}

// Profile returns the basemap setup for c.Tutorial.
func (c Client) Profile() (Profile, error) {
	switch c.Tutorial {
	case 1:
		return Profile{
			Catalog: basemap.Extended(),
			Start:   basemap.Imagery,
			Reset:   basemap.LightGrayCanvasVector,
		}, nil
	case 2:
		return Profile{
			Catalog:     basemap.Classic(),
			Start:       basemap.StreetsVector,
			Reset:       basemap.LightGrayCanvasVector,
			SaveEnabled: true,
		}, nil
	default:
		return Profile{}, fmt.Errorf("unknown tutorial %d (want 1 or 2)", c.Tutorial)
	}
}

// StatePath is the session state file. Each tutorial keeps its own.
func (c Client) StatePath() string {
	return filepath.Join(c.StateDir, fmt.Sprintf("state-%d.json", c.Tutorial))
}

// HistoryPath is the shell's command history.
func (c Client) HistoryPath() string { return filepath.Join(c.StateDir, "history") }

// KeyPath is the key that seals the cached token.
func (c Client) KeyPath() string { return filepath.Join(c.StateDir, "state.key") }
