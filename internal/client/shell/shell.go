// Package shell is the interactive front end of the map client.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/apperr"
	"github.com/atinyakov/GophMaps/internal/client/auth"
	"github.com/atinyakov/GophMaps/internal/client/mapsession"
	"github.com/atinyakov/GophMaps/internal/client/portal"
	"github.com/atinyakov/GophMaps/internal/client/saveflow"
	"github.com/atinyakov/GophMaps/internal/mapping"
)

// LineReader reads edited input lines. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// Saver saves the session to the portal. *saveflow.Flow satisfies it.
type Saver interface {
	SaveOrUpdate(ctx context.Context, vp mapping.Viewpoint, title, description string, tags []string) (saveflow.Result, error)
}

// Auth is the authentication context. *auth.Manager satisfies it.
type Auth interface {
	GetCredential(ctx context.Context, req auth.CredentialRequest, retry bool) (*auth.Credential, error)
	Credential(serviceURL string) (*auth.Credential, bool)
	RemoveCredentials()
}

// Portal lists items and builds item links. *portal.Client satisfies it.
type Portal interface {
	ListItems(ctx context.Context, cred *auth.Credential) ([]portal.ItemSummary, error)
	ItemURL(itemID string) string
}

// Store persists state between runs. *storage.LocalStorage satisfies it.
type Store interface {
	PutMap(m *mapping.Map) error
	PutCredential(cred *auth.Credential) error
	ClearCredential()
	Save() error
}

// Config wires the shell to the client components.
type Config struct {
	Session   *mapsession.Session
	Saver     Saver // nil when saving is not enabled
	Auth      Auth
	Portal    Portal
	Store     Store
	PortalURL string
	Clipboard func(text string) error
	Out       io.Writer
	Log       *zap.Logger
}

var errExit = errors.New("exit requested")

// Shell runs commands against one map session.
type Shell struct {
	rl   LineReader
	cfg  Config
	out  io.Writer
	log  *zap.Logger
	view mapping.Viewpoint
}

// New returns a shell reading from rl.
func New(rl LineReader, cfg Config) *Shell {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Clipboard == nil {
		cfg.Clipboard = clipboard.WriteAll
	}
	s := &Shell{rl: rl, cfg: cfg, out: cfg.Out, log: cfg.Log, view: mapping.WorldViewpoint()}
	if vp := cfg.Session.Map().InitialViewpoint; vp != nil {
		s.view = *vp
	}
	return s
}

// Prompt is the prompt for the current session state.
func (s *Shell) Prompt() string {
	mark := ""
	if !s.cfg.Session.IsSaved() {
		mark = "*"
	}
	return fmt.Sprintf("gophmaps [%s%s]> ", s.cfg.Session.Basemap().Name, mark)
}

// Run reads and executes commands until exit, EOF or ctx ends.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.rl.SetPrompt(s.Prompt())
		line, err := s.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(s.out, "Use 'exit' to quit.")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		args := ParseArgs(strings.TrimSpace(line))
		if len(args) == 0 {
			continue
		}
		if err := s.Execute(ctx, args); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(s.out, "Bye")
				return nil
			}
			fmt.Fprintln(s.out, apperr.Message(err))
			s.log.Debug("command failed", zap.String("command", args[0]), zap.String("detail", apperr.Verbose(err)))
		}
	}
}

// Execute runs one command.
func (s *Shell) Execute(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		s.help()
	case "basemaps":
		s.basemaps()
	case "basemap":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: basemap <name>")
			return nil
		}
		if err := s.cfg.Session.ChangeBasemap(ctx, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Basemap is now %s\n", s.cfg.Session.Basemap().Name)
	case "status":
		s.status()
	case "view":
		return s.setView(args[1:])
	case "new":
		s.cfg.Session.Reset()
		s.view = mapping.WorldViewpoint()
		fmt.Fprintf(s.out, "New map on %s\n", s.cfg.Session.Basemap().Name)
	case "save":
		return s.save(ctx, args[1:])
	case "items":
		return s.items(ctx)
	case "share":
		s.share()
	case "signout":
		if s.cfg.Auth != nil {
			s.cfg.Auth.RemoveCredentials()
		}
		if s.cfg.Store != nil {
			s.cfg.Store.ClearCredential()
			if err := s.cfg.Store.Save(); err != nil {
				s.log.Warn("state not saved", zap.Error(err))
			}
		}
		fmt.Fprintln(s.out, "Signed out")
	case "exit", "quit":
		return errExit
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

func (s *Shell) help() {
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  basemaps                      list the basemaps you can switch to")
	fmt.Fprintln(s.out, "  basemap <name>                switch the basemap")
	fmt.Fprintln(s.out, "  view <xmin> <ymin> <xmax> <ymax>  set the visible extent (web mercator)")
	fmt.Fprintln(s.out, "  status                        show the current map")
	fmt.Fprintln(s.out, "  new                           start a new map")
	if s.cfg.Saver != nil {
		fmt.Fprintln(s.out, "  save [title]                  save the map to the portal")
		fmt.Fprintln(s.out, "  items                         list your portal maps")
		fmt.Fprintln(s.out, "  share                         copy the saved map's link")
		fmt.Fprintln(s.out, "  signout                       forget the portal sign-in")
	}
	fmt.Fprintln(s.out, "  exit                          quit")
}

func (s *Shell) basemaps() {
	current := s.cfg.Session.Basemap().Name
	for _, name := range s.cfg.Session.Catalog().Names() {
		mark := " "
		if name == current {
			mark = "*"
		}
		fmt.Fprintf(s.out, "%s %s\n", mark, name)
	}
}

func (s *Shell) status() {
	m := s.cfg.Session.Map()
	fmt.Fprintf(s.out, "Basemap: %s\n", m.Basemap.Name)
	e := s.view.TargetGeometry
	fmt.Fprintf(s.out, "View: %g %g %g %g\n", e.XMin, e.YMin, e.XMax, e.YMax)
	if m.Item != nil {
		fmt.Fprintf(s.out, "Saved: yes, item %s (%s)\n", m.Item.ID, m.Item.Title)
	} else {
		fmt.Fprintln(s.out, "Saved: no")
	}
	if s.cfg.Auth != nil {
		if cred, ok := s.cfg.Auth.Credential(s.cfg.PortalURL); ok {
			fmt.Fprintf(s.out, "Signed in as: %s\n", cred.Username)
		}
	}
}

func (s *Shell) setView(args []string) error {
	if len(args) != 4 {
		fmt.Fprintln(s.out, "Usage: view <xmin> <ymin> <xmax> <ymax>")
		return nil
	}
	var v [4]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return apperr.Validation("%q is not a number", a)
		}
		v[i] = f
	}
	vp := mapping.NewViewpoint(v[0], v[1], v[2], v[3])
	if err := vp.Validate(); err != nil {
		return apperr.Validation("%s", err)
	}
	s.view = vp
	fmt.Fprintln(s.out, "View updated")
	return nil
}

func (s *Shell) save(ctx context.Context, args []string) error {
	if s.cfg.Saver == nil {
		fmt.Fprintln(s.out, "Saving is not enabled for this map profile")
		return nil
	}
	in, ok := s.promptSave(strings.Join(args, " "))
	if !ok {
		fmt.Fprintln(s.out, "Map not saved")
		return nil
	}

	res, err := s.cfg.Saver.SaveOrUpdate(ctx, s.view, in.Title, in.Description, in.Tags)
	if err != nil {
		if apperr.IsCancelled(err) {
			s.log.Info("save cancelled by user")
			fmt.Fprintln(s.out, "Map not saved: sign-in was cancelled")
			return nil
		}
		s.log.Warn("save failed", zap.Error(err))
		return err
	}
	fmt.Fprintln(s.out, res.Message())
	s.rememberCredential()
	return nil
}

func (s *Shell) rememberCredential() {
	if s.cfg.Store == nil || s.cfg.Auth == nil {
		return
	}
	cred, ok := s.cfg.Auth.Credential(s.cfg.PortalURL)
	if !ok {
		return
	}
	if err := s.cfg.Store.PutCredential(cred); err != nil {
		s.log.Debug("credential not persisted", zap.Error(err))
		return
	}
	if err := s.cfg.Store.Save(); err != nil {
		s.log.Warn("state not saved", zap.Error(err))
	}
}

func (s *Shell) items(ctx context.Context) error {
	if s.cfg.Portal == nil || s.cfg.Auth == nil {
		fmt.Fprintln(s.out, "No portal configured")
		return nil
	}
	cred, err := s.cfg.Auth.GetCredential(ctx, auth.CredentialRequest{
		ServiceURL:              s.cfg.PortalURL,
		TokenAuthenticationType: auth.OAuthImplicit,
	}, false)
	if err != nil {
		return err
	}
	items, err := s.cfg.Portal.ListItems(ctx, cred)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(s.out, "No items")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(s.out, "%s  %s  [%s]\n", it.ID, it.Title, strings.Join(it.Tags, ", "))
	}
	return nil
}

func (s *Shell) share() {
	item := s.cfg.Session.Item()
	if item == nil || s.cfg.Portal == nil {
		fmt.Fprintln(s.out, "Map is not saved yet")
		return
	}
	link := s.cfg.Portal.ItemURL(item.ID)
	if err := s.cfg.Clipboard(link); err != nil {
		s.log.Debug("clipboard unavailable", zap.Error(err))
		fmt.Fprintln(s.out, link)
		return
	}
	fmt.Fprintf(s.out, "Copied %s\n", link)
}

// PersistTo returns an observer that writes every map change to store.
func PersistTo(store Store, log *zap.Logger) mapsession.Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ev mapsession.Event) {
		if err := store.PutMap(ev.Map); err != nil {
			log.Warn("map not persisted", zap.Stringer("event", ev.Type), zap.Error(err))
			return
		}
		if err := store.Save(); err != nil {
			log.Warn("state not saved", zap.Error(err))
		}
	}
}

// ParseArgs splits a command line on spaces, keeping double-quoted runs together.
func ParseArgs(input string) []string {
	var args []string
	var current strings.Builder
	inQuotes := false

	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
