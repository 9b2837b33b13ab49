package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/atinyakov/GophMaps/internal/config"
	"github.com/atinyakov/GophMaps/internal/logger"
)

type rootOptions struct {
	configPath string
	portalURL  string
	tutorial   int
	caFile     string
	stateDir   string
	logLevel   string
	fresh      bool
}

// load reads the client config and applies the flags the user set.
func (o *rootOptions) load(cmd *cobra.Command) (config.Client, error) {
	path, required := o.configPath, true
	if path == "" {
		path, required = config.DefaultClientPath(), false
	}
	cfg, err := config.LoadClient(path, required, os.Getenv)
	if err != nil {
		return config.Client{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("portal") {
		cfg.PortalURL = o.portalURL
	}
	if flags.Changed("tutorial") {
		cfg.Tutorial = o.tutorial
	}
	if flags.Changed("ca") {
		cfg.CAFile = o.caFile
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = o.stateDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) (*logger.Logger, error) {
	log := logger.New()
	if err := log.InitConsole(level); err != nil {
		return nil, err
	}
	return log, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "gophmaps",
		Short: "Pick basemaps and save maps to a portal from the terminal",
		Long: `GophMaps opens an interactive map session.

Tutorial 1 offers the extended basemap gallery. Tutorial 2 offers the classic
gallery and saves the map to your portal after signing in with OAuth.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Log.Sync() }()
			return runShell(cmd.Context(), cfg, opts.fresh, cmd.OutOrStdout(), log.Log)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "client config file (default ~/.gophmaps/config.yaml)")
	pf.StringVar(&opts.portalURL, "portal", "", "portal REST root, e.g. http://localhost:8080/sharing/rest")
	pf.IntVarP(&opts.tutorial, "tutorial", "t", 2, "1: basemap gallery, 2: save to portal")
	pf.StringVar(&opts.caFile, "ca", "", "extra CA certificate to trust")
	pf.StringVar(&opts.stateDir, "state-dir", "", "directory for session state")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&opts.fresh, "fresh", false, "ignore the saved session and start a new map")

	root.AddCommand(newVersionCmd(), newBasemapsCmd(opts))
	return root
}
