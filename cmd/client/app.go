package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/atinyakov/GophMaps/internal/client/auth"
	"github.com/atinyakov/GophMaps/internal/client/basemap"
	"github.com/atinyakov/GophMaps/internal/client/mapsession"
	"github.com/atinyakov/GophMaps/internal/client/portal"
	"github.com/atinyakov/GophMaps/internal/client/saveflow"
	"github.com/atinyakov/GophMaps/internal/client/shell"
	"github.com/atinyakov/GophMaps/internal/client/storage"
	"github.com/atinyakov/GophMaps/internal/config"
)

// app is the wired client, ready to run a shell.
type app struct {
	session *mapsession.Session
	shell   shell.Config
	store   *storage.LocalStorage
}

func newApp(ctx context.Context, cfg config.Client, fresh bool, out io.Writer, log *zap.Logger) (*app, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}

	key, err := storage.LoadOrCreateKey(cfg.KeyPath())
	if err != nil {
		return nil, err
	}
	aead, err := storage.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.StatePath(), aead)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{}
	if cfg.CAFile != "" {
		if httpClient, err = portal.NewHTTPClient(cfg.CAFile); err != nil {
			return nil, err
		}
	}

	// Public basemap items live on their own portal and are read anonymously.
	basemapPortal := portal.NewClient(cfg.BasemapPortalURL, http.DefaultClient, log.Named("basemaps"))
	provider := basemap.NewStandard(basemapPortal, http.DefaultClient, log.Named("basemaps"))

	session, err := mapsession.New(ctx, profile.Catalog, basemap.NewRegistry(provider),
		profile.Start, profile.Reset, mapsession.WithLogger(log.Named("session")))
	if err != nil {
		return nil, err
	}
	if !fresh {
		m, err := store.Map()
		if err != nil {
			log.Warn("saved map unreadable, starting fresh", zap.Error(err))
		} else if m != nil {
			if err := session.Restore(m); err != nil {
				log.Warn("saved map not restored", zap.Error(err))
			}
		}
	}
	session.Subscribe(shell.PersistTo(store, log.Named("storage")))

	a := &app{
		session: session,
		store:   store,
		shell: shell.Config{
			Session:   session,
			Store:     store,
			PortalURL: cfg.PortalURL,
			Out:       out,
			Log:       log,
		},
	}
	if !profile.SaveEnabled {
		return a, nil
	}

	opts := []auth.Option{
		auth.WithServer(auth.ServerInfo{
			ServerURL:               cfg.PortalURL,
			TokenAuthenticationType: auth.OAuthImplicit,
			OAuthClientInfo: auth.OAuthClientInfo{
				ClientID:    cfg.ClientID,
				RedirectURL: cfg.RedirectURL,
			},
		}),
		auth.WithAuthorizer(&auth.ImplicitAuthorizer{
			Expiration: cfg.TokenExpiration,
			Log:        log.Named("auth"),
		}),
		auth.WithLogger(log.Named("auth")),
	}
	if cred, ok := store.Credential(); ok && cred.ServiceURL == cfg.PortalURL {
		opts = append(opts, auth.WithCredential(cred))
	}
	manager, err := auth.NewManager(opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	portalClient := portal.NewClient(cfg.PortalURL, httpClient, log.Named("portal"))
	a.shell.Auth = manager
	a.shell.Portal = portalClient
	a.shell.Saver = saveflow.New(session, manager, portalClient,
		saveflow.Config{PortalURL: cfg.PortalURL, Folder: cfg.Folder}, log.Named("save"))
	return a, nil
}

func runShell(ctx context.Context, cfg config.Client, fresh bool, out io.Writer, log *zap.Logger) error {
	a, err := newApp(ctx, cfg, fresh, out, log)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gophmaps> ",
		HistoryFile:     cfg.HistoryPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(out, "Tutorial %d. Type 'help' for commands.\n", cfg.Tutorial)
	return shell.New(rl, a.shell).Run(ctx)
}
