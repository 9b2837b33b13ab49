package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/chzyer/readline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophMaps/internal/apperr"
	"github.com/atinyakov/GophMaps/internal/client/auth"
	"github.com/atinyakov/GophMaps/internal/client/basemap"
	"github.com/atinyakov/GophMaps/internal/client/mapsession"
	"github.com/atinyakov/GophMaps/internal/client/portal"
	"github.com/atinyakov/GophMaps/internal/client/saveflow"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

const testPortal = "https://portal.example/sharing/rest"

// scriptReader replays lines and then reports EOF.
type scriptReader struct {
	lines   []string
	errs    map[int]error
	prompts []string
	n       int
}

func (r *scriptReader) Readline() (string, error) {
	defer func() { r.n++ }()
	if err, ok := r.errs[r.n]; ok {
		return "", err
	}
	if r.n >= len(r.lines) {
		return "", io.EOF
	}
	return r.lines[r.n], nil
}

func (r *scriptReader) SetPrompt(p string) { r.prompts = append(r.prompts, p) }
func (r *scriptReader) Close() error       { return nil }

type fakeSaver struct {
	calls            int
	SaveOrUpdateFunc func(ctx context.Context, vp mapping.Viewpoint, title, description string, tags []string) (saveflow.Result, error)
}

func (f *fakeSaver) SaveOrUpdate(ctx context.Context, vp mapping.Viewpoint, title, description string, tags []string) (saveflow.Result, error) {
	f.calls++
	return f.SaveOrUpdateFunc(ctx, vp, title, description, tags)
}

type fakeAuth struct {
	cred    *auth.Credential
	removed bool
}

func (f *fakeAuth) GetCredential(context.Context, auth.CredentialRequest, bool) (*auth.Credential, error) {
	if f.cred == nil {
		return nil, apperr.ErrAuthenticationCancelled
	}
	return f.cred, nil
}

func (f *fakeAuth) Credential(string) (*auth.Credential, bool) { return f.cred, f.cred != nil }
func (f *fakeAuth) RemoveCredentials()                         { f.cred = nil; f.removed = true }

type fakePortal struct {
	ListItemsFunc func(ctx context.Context, cred *auth.Credential) ([]portal.ItemSummary, error)
}

func (f fakePortal) ListItems(ctx context.Context, cred *auth.Credential) ([]portal.ItemSummary, error) {
	return f.ListItemsFunc(ctx, cred)
}

func (fakePortal) ItemURL(id string) string { return testPortal + "/content/items/" + id }

type fakeStore struct {
	maps    []*mapping.Map
	creds   []*auth.Credential
	cleared bool
	saves   int
}

func (f *fakeStore) PutMap(m *mapping.Map) error            { f.maps = append(f.maps, m); return nil }
func (f *fakeStore) PutCredential(c *auth.Credential) error { f.creds = append(f.creds, c); return nil }
func (f *fakeStore) ClearCredential()                       { f.cleared = true }
func (f *fakeStore) Save() error                            { f.saves++; return nil }

func newSession(t *testing.T) *mapsession.Session {
	t.Helper()
	s, err := mapsession.New(context.Background(), basemap.Classic(),
		basemap.NewRegistry(basemap.NewStandard(nil, nil, nil)), basemap.StreetsVector, basemap.LightGrayCanvasVector)
	require.NoError(t, err)
	return s
}

func run(t *testing.T, cfg Config, lines ...string) (string, *scriptReader) {
	t.Helper()
	var out bytes.Buffer
	cfg.Out = &out
	if cfg.Session == nil {
		cfg.Session = newSession(t)
	}
	rl := &scriptReader{lines: lines}
	require.NoError(t, New(rl, cfg).Run(context.Background()))
	return out.String(), rl
}

func TestBasemapCommands(t *testing.T) {
	s := newSession(t)
	out, rl := run(t, Config{Session: s}, "basemaps", `basemap "imagery"`, "basemap Nope", "basemap")

	assert.Contains(t, out, "* Streets Vector")
	assert.Contains(t, out, "Basemap is now Imagery")
	assert.Contains(t, out, `Unknown basemap: "Nope"`)
	assert.Contains(t, out, "Usage: basemap <name>")
	assert.Equal(t, "Imagery", s.Basemap().Name)
	assert.Contains(t, rl.prompts, "gophmaps [Imagery*]> ")
}

func TestNewResetsMap(t *testing.T) {
	s := newSession(t)
	out, _ := run(t, Config{Session: s}, "basemap Oceans", "view 0 0 10 10", "new", "status")
	assert.Contains(t, out, "New map on Light Gray Canvas Vector")
	assert.Contains(t, out, "Saved: no")
	assert.False(t, s.IsSaved())
}

func TestView(t *testing.T) {
	out, _ := run(t, Config{}, "view 1 2", "view a 0 1 1", "view 10 0 0 10", "view NaN 0 1 1", "view 0 0 +Inf 1", "view -5 -5 5 5", "status")
	assert.Contains(t, out, "Usage: view")
	assert.Contains(t, out, `Invalid input: "a" is not a number`)
	assert.Contains(t, out, "Invalid input: invalid extent")
	assert.Contains(t, out, "Invalid input: viewpoint has non-finite value NaN")
	assert.Contains(t, out, "Invalid input: viewpoint has non-finite value +Inf")
	assert.Contains(t, out, "View: -5 -5 5 5")
}

func TestSave_PromptsAndReports(t *testing.T) {
	var gotTitle, gotDesc string
	var gotTags []string
	var gotView mapping.Viewpoint
	saver := &fakeSaver{SaveOrUpdateFunc: func(_ context.Context, vp mapping.Viewpoint, title, desc string, tags []string) (saveflow.Result, error) {
		gotView, gotTitle, gotDesc, gotTags = vp, title, desc, tags
		return saveflow.Result{Action: saveflow.ActionCreated, ItemID: "123", Title: title}, nil
	}}
	store := &fakeStore{}
	au := &fakeAuth{cred: &auth.Credential{Token: "t", Username: "alice"}}

	out, _ := run(t, Config{Saver: saver, Auth: au, Store: store, PortalURL: testPortal},
		"view 0 0 100 100", "save", "My Trails", "Trails near town", "hiking, , park")

	assert.Contains(t, out, "Map 'My Trails' was saved to your portal")
	assert.Equal(t, "My Trails", gotTitle)
	assert.Equal(t, "Trails near town", gotDesc)
	assert.Equal(t, []string{"hiking", "park"}, gotTags)
	assert.Equal(t, 100.0, gotView.TargetGeometry.XMax)
	require.Len(t, store.creds, 1)
	assert.Equal(t, "alice", store.creds[0].Username)
}

func TestSave_TitleFromArgs(t *testing.T) {
	var gotTitle string
	saver := &fakeSaver{SaveOrUpdateFunc: func(_ context.Context, _ mapping.Viewpoint, title, _ string, _ []string) (saveflow.Result, error) {
		gotTitle = title
		return saveflow.Result{Action: saveflow.ActionCreated, Title: title}, nil
	}}
	run(t, Config{Saver: saver, Auth: &fakeAuth{}}, `save "Park map"`, "desc", "")
	assert.Equal(t, "Park map", gotTitle)
}

func TestSave_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cancelled", apperr.ErrAuthenticationCancelled, "Map not saved: sign-in was cancelled"},
		{"validation", apperr.Validation("description must not be empty"), "Invalid input: description must not be empty"},
		{"network", apperr.CallErr{Err: errors.New("server error: boom")}, "Could not reach the service: server error: boom"},
		{"busy", apperr.ErrSaveInProgress, "A save is already in progress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeSaver{SaveOrUpdateFunc: func(context.Context, mapping.Viewpoint, string, string, []string) (saveflow.Result, error) {
				return saveflow.Result{}, tt.err
			}}
			store := &fakeStore{}
			out, _ := run(t, Config{Saver: saver, Auth: &fakeAuth{}, Store: store}, "save T", "D", "")
			assert.Contains(t, out, tt.want)
			assert.Empty(t, store.creds)
		})
	}
}

func TestSave_InterruptedPrompt(t *testing.T) {
	saver := &fakeSaver{}
	var out bytes.Buffer
	rl := &scriptReader{lines: []string{"save", ""}, errs: map[int]error{1: readline.ErrInterrupt}}
	require.NoError(t, New(rl, Config{Session: newSession(t), Saver: saver, Out: &out}).Run(context.Background()))
	assert.Contains(t, out.String(), "Map not saved")
	assert.Zero(t, saver.calls)
}

func TestSave_Disabled(t *testing.T) {
	out, _ := run(t, Config{}, "save T", "help")
	assert.Contains(t, out, "Saving is not enabled")
	assert.NotContains(t, out, "save [title]")
}

func TestItemsAndShare(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.CommitCreate(mapping.ItemRef{ID: "123", Title: "T"}, mapping.WorldViewpoint()))

	var copied string
	p := fakePortal{ListItemsFunc: func(_ context.Context, cred *auth.Credential) ([]portal.ItemSummary, error) {
		assert.Equal(t, "alice", cred.Username)
		return []portal.ItemSummary{{ID: "123", Title: "T", Tags: []string{"a", "b"}}}, nil
	}}
	cfg := Config{
		Session:   s,
		Auth:      &fakeAuth{cred: &auth.Credential{Token: "t", Username: "alice"}},
		Portal:    p,
		PortalURL: testPortal,
		Clipboard: func(text string) error { copied = text; return nil },
	}
	out, _ := run(t, cfg, "items", "share", "status")
	assert.Contains(t, out, "123  T  [a, b]")
	assert.Contains(t, out, "Copied "+testPortal+"/content/items/123")
	assert.Equal(t, testPortal+"/content/items/123", copied)
	assert.Contains(t, out, "Signed in as: alice")
	assert.Contains(t, out, "Saved: yes, item 123 (T)")
}

func TestShare_ClipboardUnavailable(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.CommitCreate(mapping.ItemRef{ID: "9", Title: "T"}, mapping.WorldViewpoint()))
	cfg := Config{Session: s, Portal: fakePortal{}, Clipboard: func(string) error { return errors.New("no clipboard") }}
	out, _ := run(t, cfg, "share")
	assert.Contains(t, out, testPortal+"/content/items/9\n")
}

func TestItems_SignInCancelled(t *testing.T) {
	out, _ := run(t, Config{Auth: &fakeAuth{}, Portal: fakePortal{}}, "items")
	assert.Contains(t, out, "sign-in was cancelled")
}

func TestSignout(t *testing.T) {
	au := &fakeAuth{cred: &auth.Credential{Token: "t"}}
	store := &fakeStore{}
	out, _ := run(t, Config{Auth: au, Store: store}, "signout")
	assert.Contains(t, out, "Signed out")
	assert.True(t, au.removed)
	assert.True(t, store.cleared)
	assert.Equal(t, 1, store.saves)
}

func TestExitAndUnknown(t *testing.T) {
	out, _ := run(t, Config{}, "bogus", "exit", "status")
	assert.Contains(t, out, "Unknown command")
	assert.Contains(t, out, "Bye")
	assert.NotContains(t, out, "Basemap:")
}

func TestInterruptContinues(t *testing.T) {
	var out bytes.Buffer
	rl := &scriptReader{lines: []string{"", "status"}, errs: map[int]error{0: readline.ErrInterrupt}}
	require.NoError(t, New(rl, Config{Session: newSession(t), Out: &out}).Run(context.Background()))
	assert.Contains(t, out.String(), "Use 'exit' to quit.")
	assert.Contains(t, out.String(), "Basemap: Streets Vector")
}

func TestPersistTo(t *testing.T) {
	s := newSession(t)
	store := &fakeStore{}
	s.Subscribe(PersistTo(store, nil))

	require.NoError(t, s.ChangeBasemap(context.Background(), "Oceans"))
	s.Reset()
	require.Len(t, store.maps, 2)
	assert.Equal(t, "Oceans", store.maps[0].Basemap.Name)
	assert.Equal(t, "Light Gray Canvas Vector", store.maps[1].Basemap.Name)
	assert.Equal(t, 2, store.saves)
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"basemap", "Light Gray Canvas Vector"}, ParseArgs(`basemap "Light Gray Canvas Vector"`))
	assert.Equal(t, []string{"view", "1", "2"}, ParseArgs("view  1   2 "))
	assert.Nil(t, ParseArgs(""))
}
