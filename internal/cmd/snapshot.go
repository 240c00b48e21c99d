package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the process tree once",
	Long: `Sample the process table and print it as a tree.

CPU usage is measured over --sample-delay, so the command takes two passes.

Examples:
  # Indented tree
  proctree snapshot

  # Only sshd processes and their ancestors, as JSON
  proctree snapshot --match 'sshd*' --format json

  # Only the subtree under pid 812
  proctree snapshot --root 812`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

var (
	snapshotFormat string
	snapshotMatch  string
	snapshotDelay  time.Duration
	snapshotRoot   int32
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&snapshotFormat, "format", "f", formatText, "output format: "+strings.Join(validFormats(), ", "))
	snapshotCmd.Flags().StringVarP(&snapshotMatch, "match", "m", "", "only show processes whose name matches this glob, with their ancestors")
	snapshotCmd.Flags().DurationVar(&snapshotDelay, "sample-delay", 500*time.Millisecond, "time between the two passes used to measure cpu (0 takes one pass)")
	snapshotCmd.Flags().Int32Var(&snapshotRoot, "root", int32(process.NoParent), "only show the subtree under this pid (-1 shows every process)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	if !slices.Contains(validFormats(), snapshotFormat) {
		return errors.NewValidationError("unknown output format").WithField("format").WithValue(snapshotFormat)
	}
	var match glob.Glob
	if snapshotMatch != "" {
		g, err := glob.Compile(snapshotMatch)
		if err != nil {
			return errors.NewValidationError("invalid match pattern").WithField("match").WithValue(snapshotMatch).WithCause(err)
		}
		match = g
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	enum := newEnumerator(cfg)
	if snapshotDelay > 0 {
		if _, err := enum.Enumerate(ctx); err != nil {
			return fmt.Errorf("failed to enumerate processes: %w", err)
		}
		select {
		case <-time.After(snapshotDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	entries, err := enum.Enumerate(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate processes: %w", err)
	}
	snap, err := snapshot.Build(entries)
	if err != nil {
		return err
	}

	top, err := reportRoots(snap, process.PID(snapshotRoot))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := 0
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}
	return writeReport(out, buildReport(snap, top, match), snapshotFormat, width)
}
