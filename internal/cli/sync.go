package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rulesync/pkg/config"
	"rulesync/pkg/notify"
	"rulesync/pkg/rules"
	"rulesync/pkg/source"
)

const (
	cmdExamples = `  # Install rules into the current project:
  rulesync --source ~/rules

  # Install from a git repository:
  rulesync --source https://github.com/example/rules.git

  # Sync a project with the source configured in config.yaml:
  rulesync update

  # Preview what an update would change:
  rulesync update --dry-run

  # Overwrite locally edited rule files:
  rulesync update --force

  # Maintain a user-wide installation instead of a per-project one:
  rulesync update --global`
)

type SyncArgs struct {
	*RootArgs

	ConfigPath  string
	Source      string
	Global      bool
	Force       bool
	DryRun      bool
	WriteConfig bool
}

func NewSyncArgs(rootArgs *RootArgs) *SyncArgs {
	return &SyncArgs{
		RootArgs: rootArgs,
	}
}

func (sa *SyncArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sa.ConfigPath, "config", "", "Path to the rulesync configuration file")
	cmd.Flags().StringVar(&sa.Source, "source", "", "Rule source, a directory path or git URL (overrides config)")
	cmd.Flags().BoolVar(&sa.Global, "global", false, "Target the user-wide installation instead of the current directory")
	cmd.Flags().BoolVar(&sa.Force, "force", false, "Overwrite locally modified and untracked rule files")
	cmd.Flags().BoolVarP(&sa.DryRun, "dry-run", "n", false, "Report what would change without writing anything")
	cmd.Flags().BoolVar(&sa.WriteConfig, "write-config", false, "Write the default configuration file and exit")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

func NewInstallCmd(sa *SyncArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install rule files into a project (default command)",
		Example: cmdExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, sa, false)
		},
	}
	sa.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func NewUpdateCmd(sa *SyncArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Sync an existing installation with its rule source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, sa, true)
		},
	}
	sa.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

func runSync(cmd *cobra.Command, sa *SyncArgs, update bool) error {
	ctx := cmd.Context()

	configPath := sa.ConfigPath
	if configPath == "" {
		configPath = config.GetPath()
	}

	// A dry run must not write anything, not even the config bootstrap.
	if !sa.DryRun || sa.WriteConfig {
		err := config.WriteDefault(configPath)
		if err != nil {
			slog.Error("write default config", slog.Any("err", err))
		}
		if sa.WriteConfig {
			// Exit early after writing the default config.
			// Also, if there was an error, it should be fatal.
			return err
		}
	}

	cfg := config.New()

	loaded, err := config.Load(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Warn("could not read config, using defaults", slog.Any("err", err))

	case err != nil:
		return fmt.Errorf("invalid config %q: %w", configPath, err)

	default:
		cfg = loaded
	}

	location := sa.Source
	if location == "" {
		location = cfg.Source
	}
	if location == "" {
		return errors.New("no rule source configured, pass --source or set source in the config file")
	}

	srcDir, cleanup, err := source.New(location).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch rule source: %w", err)
	}
	defer cleanup()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}

	root := cwd
	opts := []rules.Option{
		rules.WithForce(sa.Force),
		rules.WithDryRun(sa.DryRun),
		rules.WithIgnore(cfg.Ignore),
	}

	if sa.Global {
		// The installation lives in the user config directory, but
		// ecosystem detection still looks at the project at hand.
		root = config.Dir()
		opts = append(opts, rules.WithDetectDir(cwd))
	}

	eng := rules.NewEngine(rules.NewInstallation(root), opts...)

	var summary *rules.Summary
	if update {
		summary, err = eng.Update(ctx, srcDir)
	} else {
		summary, err = eng.Install(ctx, srcDir)
	}

	switch {
	case errors.Is(err, rules.ErrAlreadyInstalled):
		return fmt.Errorf("%w in %s, run %q to sync or pass --force to reinstall", err, root, cmdName+" update")

	case errors.Is(err, rules.ErrNotInstalled):
		return fmt.Errorf("%w in %s, run %q first", err, root, cmdName+" install")

	case err != nil:
		return fmt.Errorf("sync rules: %w", err)
	}

	bytesKey := "written"
	if sa.DryRun {
		bytesKey = "would-write"
	}

	slog.Info("sync complete",
		slog.Int("added", summary.Added),
		slog.Int("updated", summary.Updated),
		slog.Int("skipped", summary.Skipped),
		slog.String(bytesKey, humanize.Bytes(uint64(summary.BytesWritten))), //nolint:gosec // G115: byte counts are non-negative.
		slog.Bool("dry-run", sa.DryRun),
	)

	if !sa.DryRun {
		notify.New(cfg.Notify).Notify(ctx)
	}

	return nil
}
