package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sentra/internal/analysis"
	"github.com/conneroisu/sentra/internal/watcher"
)

var (
	watchFlags    AnalysisFlags
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:     "watch [dir]",
	Aliases: []string{"w"},
	Short:   "Re-analyze source files as they change",
	Long: `Watch a directory tree and print a one-line analysis summary for every
supported source file that is created or modified. VCS, vendor and
dependency directories are skipped.

Examples:
  sentra watch                     # Current directory
  sentra watch ./src --kind security
  sentra watch --debounce 1s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addAnalysisFlags(watchCmd, &watchFlags)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before a batch of changes is analyzed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	kinds, err := watchFlags.ParseKinds()
	if err != nil {
		return err
	}

	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	fw, err := watcher.NewFileWatcher(watchDebounce, logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(watcher.ExtensionFilter(analysis.SupportedExtensions()))
	fw.AddFilter(watcher.NoIgnoredDirFilter)
	fw.AddFilter(watcher.NoHiddenFilter)

	engine := analysis.NewEngine(cfg.AnalysisOptions(), logger, nil)
	fw.AddHandler(watcher.ReportHandler(engine, cmd.OutOrStdout(), watchFlags.Language, kinds))

	if err := fw.AddRecursive(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fw.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (%d directories). Press Ctrl+C to stop.\n", dir, len(fw.WatchList()))

	<-ctx.Done()
	return nil
}
