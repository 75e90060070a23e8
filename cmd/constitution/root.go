package main

import (
	"errors"

	"github.com/spf13/cobra"

	"constitution/internal/config"
	"constitution/internal/format"
	"constitution/internal/graphdoc"
	"constitution/internal/logging"
	"constitution/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

// errFailed means the command ran but the subject did not pass: a report
// with violations, a denied gate verdict or a rejected bundle.
var errFailed = errors.New("constitution: check failed")

func exitCode(err error) int {
	if errors.Is(err, errFailed) {
		return 2
	}
	return 1
}

// app holds the persistent flags and the configuration they resolve to.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	output     string
	dbPath     string

	cfg  config.Config
	mode format.Mode
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}
	root := &cobra.Command{
		Use:   "constitution",
		Short: "Decision-governance kernel for evidence-backed recommendations",
		Long: `Constitution validates decision graphs (evidence, observations, options,
recommendations and episodes) against the kernel invariants, gates action
classes by risk and uncertainty, and screens untrusted provider proposals.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath+" when present)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&a.logFormat, "log-format", "", "log format: text, json")
	f.StringVarP(&a.output, "output", "o", "", "output format: ascii, markdown, json")
	f.StringVar(&a.dbPath, "db", "", "SQLite store path (overrides the configured store)")

	root.AddCommand(
		newValidateCmd(a),
		newGateCmd(a),
		newProposalsCmd(a),
		newStatusCmd(a),
		newCanonCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup resolves config file, then flags, into a.cfg and installs logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.output != "" {
		cfg.Output = a.output
	}
	if a.dbPath != "" {
		cfg.Store = config.StoreConfig{Driver: config.DriverSQLite, Path: a.dbPath}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	mode, err := format.ParseMode(cfg.Output)
	if err != nil {
		return err
	}
	a.cfg, a.mode = cfg, mode
	return nil
}

// openStore opens the configured store and, when graphPath is set, loads
// that document into it. The returned close func is never nil.
func (a *app) openStore(graphPath string) (store.Store, *graphdoc.Document, func() error, error) {
	st, closeStore, err := a.cfg.OpenStore()
	if err != nil {
		return nil, nil, nil, err
	}
	if graphPath == "" {
		return st, nil, closeStore, nil
	}
	doc, err := graphdoc.LoadInto(st, graphPath)
	if err != nil {
		_ = closeStore()
		return nil, nil, nil, err
	}
	return st, doc, closeStore, nil
}
