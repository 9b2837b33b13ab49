// Package saveflow saves the map session to the portal: the first save creates
// a web map item, later saves update that item's content.
package saveflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/apperr"
	"github.com/atinyakov/GophMaps/internal/client/auth"
	"github.com/atinyakov/GophMaps/internal/client/portal"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

// Session is the part of the map session the flow reads and commits to.
type Session interface {
	IsSaved() bool
	Item() *mapping.ItemRef
	PrepareCreate(vp mapping.Viewpoint) ([]byte, error)
	CommitCreate(item mapping.ItemRef, vp mapping.Viewpoint) error
	Content() (data []byte, itemID string, err error)
}

// CredentialSource acquires portal credentials. *auth.Manager satisfies it.
type CredentialSource interface {
	GetCredential(ctx context.Context, req auth.CredentialRequest, retry bool) (*auth.Credential, error)
}

// Portal creates and updates items. *portal.Client satisfies it.
type Portal interface {
	CreateItem(ctx context.Context, cred *auth.Credential, item portal.NewItem) (string, error)
	UpdateItem(ctx context.Context, cred *auth.Credential, itemID string, data []byte) error
}

// Config fixes where maps are saved.
type Config struct {
	PortalURL string
	Folder    string
}

// Action is what a successful save did.
type Action int

const (
	ActionCreated Action = iota + 1
	ActionUpdated
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionUpdated:
		return "updated"
	}
	return "unknown"
}

// Result describes a successful save.
type Result struct {
	Action Action
	ItemID string
	Title  string
}

// Message is the confirmation shown to the user.
func (r Result) Message() string {
	if r.Action == ActionUpdated {
		return fmt.Sprintf("Changes to '%s' were updated to the portal.", r.Title)
	}
	return fmt.Sprintf("Map '%s' was saved to your portal", r.Title)
}

// Flow runs saves for one session. At most one save is in flight at a time.
type Flow struct {
	session Session
	creds   CredentialSource
	portal  Portal
	cfg     Config
	log     *zap.Logger
	busy    atomic.Bool
}

// New returns a save flow.
func New(session Session, creds CredentialSource, p Portal, cfg Config, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{session: session, creds: creds, portal: p, cfg: cfg, log: log}
}

// InProgress reports whether a save is outstanding.
func (f *Flow) InProgress() bool {
	return f.busy.Load()
}

// SaveOrUpdate creates the portal item for an unsaved map, or pushes the
// current content to the existing item. On update, vp and the metadata are ignored.
func (f *Flow) SaveOrUpdate(ctx context.Context, vp mapping.Viewpoint, title, description string, tags []string) (Result, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return Result{}, apperr.ErrSaveInProgress
	}
	defer f.busy.Store(false)

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return Result{}, apperr.Validation("title must not be empty")
	}
	if description == "" {
		return Result{}, apperr.Validation("description must not be empty")
	}
	saved := f.session.IsSaved()
	if !saved {
		if err := vp.Validate(); err != nil {
			return Result{}, apperr.Validation("%s", err)
		}
	}

	cred, err := f.creds.GetCredential(ctx, auth.CredentialRequest{
		ServiceURL:              f.cfg.PortalURL,
		TokenAuthenticationType: auth.OAuthImplicit,
	}, false)
	if err != nil {
		if !errors.Is(err, apperr.ErrAuthenticationCancelled) && !errors.Is(err, apperr.ErrAuthenticationFailure) {
			err = fmt.Errorf("%w: %w", apperr.ErrAuthenticationFailure, err)
		}
		if apperr.IsCancelled(err) {
			f.log.Info("save cancelled at sign-in")
		} else {
			f.log.Warn("credential not acquired", zap.Error(err))
		}
		return Result{}, err
	}

	if saved {
		return f.update(ctx, cred)
	}
	return f.create(ctx, cred, vp, title, description, tags)
}

func (f *Flow) create(ctx context.Context, cred *auth.Credential, vp mapping.Viewpoint, title, description string, tags []string) (Result, error) {
	data, err := f.session.PrepareCreate(vp)
	if err != nil {
		return Result{}, fmt.Errorf("serialize map: %w", err)
	}
	extent := vp.TargetGeometry
	id, err := f.portal.CreateItem(ctx, cred, portal.NewItem{
		Title:       title,
		Description: description,
		Tags:        tags,
		Folder:      f.cfg.Folder,
		Extent:      &extent,
		Data:        data,
	})
	if err != nil {
		f.log.Error("create item failed", zap.String("title", title), zap.Error(err))
		return Result{}, networkErr(err)
	}
	if err := f.session.CommitCreate(mapping.ItemRef{ID: id, Title: title}, vp); err != nil {
		return Result{}, fmt.Errorf("item %s created but not recorded: %w", id, err)
	}
	return Result{Action: ActionCreated, ItemID: id, Title: title}, nil
}

func (f *Flow) update(ctx context.Context, cred *auth.Credential) (Result, error) {
	data, itemID, err := f.session.Content()
	if err != nil {
		return Result{}, fmt.Errorf("serialize map: %w", err)
	}
	if err := f.portal.UpdateItem(ctx, cred, itemID, data); err != nil {
		f.log.Error("update item failed", zap.String("item", itemID), zap.Error(err))
		return Result{}, networkErr(err)
	}
	res := Result{Action: ActionUpdated, ItemID: itemID}
	if it := f.session.Item(); it != nil {
		res.Title = it.Title
	}
	return res, nil
}

// networkErr keeps portal failures inside the known error kinds.
func networkErr(err error) error {
	if errors.Is(err, apperr.ErrNetwork) || errors.Is(err, apperr.ErrAuthenticationFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", apperr.ErrNetwork, err)
}

// ParseTags splits a comma separated tag list. Tags are trimmed and empty
// ones dropped; order and duplicates are kept.
func ParseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
