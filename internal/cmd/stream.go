package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/proctree/internal/errors"
	"github.com/Iron-Ham/proctree/internal/event"
	"github.com/Iron-Ham/proctree/internal/monitor"
	"github.com/Iron-Ham/proctree/internal/process"
	"github.com/Iron-Ham/proctree/internal/tree"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Print tree mutations as they happen",
	Long: `Run the monitor without a UI and print every row mutation the live
tree produces, one per line, followed by a summary line per refresh.

Lines:
  reset processes=N
  insert parent=P row=R pid=X name=NAME
  remove parent=P row=R pid=X
  changed pid=X cpu=C`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

var (
	streamPasses   int
	streamInterval time.Duration
)

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().IntVarP(&streamPasses, "passes", "n", 0, "stop after this many refreshes (0 runs until interrupted)")
	streamCmd.Flags().DurationVar(&streamInterval, "interval", 0, "sampling interval (default from sampler.interval_ms)")
}

// lineView prints every tree mutation as a line.
type lineView struct {
	w    io.Writer
	tree *tree.Tree

	insertParent process.PID
	insertRow    int
}

func (v *lineView) BeginInsert(parent process.PID, row int) {
	v.insertParent, v.insertRow = parent, row
}

func (v *lineView) EndInsert() {
	pid, _ := v.tree.ChildAt(v.insertParent, v.insertRow)
	fmt.Fprintf(v.w, "insert parent=%d row=%d pid=%d name=%s\n", v.insertParent, v.insertRow, pid, v.tree.Name(pid))
}

// BeginRemove runs before the node is dropped, so the row still resolves.
func (v *lineView) BeginRemove(parent process.PID, row int) {
	pid, _ := v.tree.ChildAt(parent, row)
	fmt.Fprintf(v.w, "remove parent=%d row=%d pid=%d\n", parent, row, pid)
}

func (v *lineView) EndRemove() {}

func (v *lineView) DataChanged(pid process.PID) {
	fmt.Fprintf(v.w, "changed pid=%d cpu=%.1f\n", pid, v.tree.CPUUsage(pid))
}

func (v *lineView) BeginReset() {}

func (v *lineView) EndReset() {
	fmt.Fprintf(v.w, "reset processes=%d\n", v.tree.Len())
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	interval := cfg.Sampler.Interval()
	if streamInterval > 0 {
		interval = streamInterval
	}

	out := cmd.OutOrStdout()
	bus := event.NewBus(logger)

	// Subscribe before the sampler starts so the first pass is not missed.
	ready := make(chan struct{}, 1)
	readyID := bus.Subscribe(event.TypeSnapshotReady, func(event.Event) {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	defer bus.Unsubscribe(readyID)

	view := &lineView{w: out}
	mon, err := monitor.New(monitor.Options{
		Enumerator:      newEnumerator(cfg),
		View:            view,
		Bus:             bus,
		Logger:          logger,
		Interval:        interval,
		IdleTimeout:     cfg.Sampler.IdleTimeout(),
		CheckInvariants: checkInvariants(cfg),
		Active:          true,
	})
	if err != nil {
		return err
	}
	view.tree = mon.Tree()
	defer func() { _ = mon.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := streamRefreshes(ctx, mon, ready, out); err != nil {
		return err
	}

	stats := mon.Stats()
	fmt.Fprintf(out, "# passes=%d failures=%d dropped=%d\n", stats.Passes, stats.Failures, stats.Dropped)
	return nil
}

// streamRefreshes applies snapshots as they are announced until the pass
// limit is reached or ctx is done. A refresh that fails with a domain error is
// reported and the stream continues from the rebuilt tree.
func streamRefreshes(ctx context.Context, mon *monitor.Monitor, ready <-chan struct{}, out io.Writer) error {
	t := mon.Tree()
	for refreshes := 0; streamPasses <= 0 || refreshes < streamPasses; {
		select {
		case <-ctx.Done():
			return nil
		case <-mon.Done():
			return errors.NewSamplerError("sampler exited", errors.ErrSamplerStopped)
		case <-ready:
		}
		if !mon.CanRefresh() {
			continue
		}
		refreshes++
		if err := mon.ApplyPendingRefresh(); err != nil {
			if !errors.IsDomainError(err) {
				return err
			}
			fmt.Fprintf(out, "# refresh %d failed (%s): %v\n", refreshes, errors.GetSeverity(err), err)
			continue
		}
		res := t.LastSync()
		fmt.Fprintf(out, "# refresh %d: +%d -%d ~%d processes=%d total_cpu=%.1f\n",
			refreshes, res.Inserted, res.Removed, res.Changed, t.Len(), t.TotalCPU())
	}
	return nil
}
