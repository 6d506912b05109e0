// Command simulate runs a demo scenario headless and prints the transfer log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/upgrade-engine/api"
	"github.com/warp/upgrade-engine/factory"
	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/generic/store"
	"github.com/warp/upgrade-engine/snapshot"
	"github.com/warp/upgrade-engine/tuning"
	"github.com/warp/upgrade-engine/world"
)

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run upgrade automation scenarios without the HTTP server.",
	Long: `Run upgrade automation scenarios without the HTTP server. ` +
		`Each run builds a fresh world, ticks it and prints every transfer ` +
		`the installed upgrades performed.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tick a scenario and print its transfers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		scenario, _ := cmd.Flags().GetString("scenario")
		ticks, _ := cmd.Flags().GetInt("ticks")
		tuningPath, _ := cmd.Flags().GetString("tuning")
		snapshotPath, _ := cmd.Flags().GetString("snapshot")
		return runScenario(cmd.Context(), scenario, ticks, tuningPath, snapshotPath)
	},
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the available scenarios",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCATEGORY\tDESCRIPTION")
		for _, s := range api.Scenarios() {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Category, s.Description)
		}
		tw.Flush()
	},
}

func init() {
	runCmd.Flags().StringP("scenario", "s", "player-above-threshold", "scenario to run")
	runCmd.Flags().IntP("ticks", "n", 40, "number of ticks")
	runCmd.Flags().String("tuning", "", "tuning file (defaults when empty)")
	runCmd.Flags().String("snapshot", "", "write a snapshot of the final world here")
	rootCmd.AddCommand(runCmd, scenariosCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScenario(ctx context.Context, scenario string, ticks int, tuningPath, snapshotPath string) error {
	if ticks < 0 {
		return errors.New("ticks must not be negative")
	}
	t := tuning.Default()
	if tuningPath != "" {
		var err error
		if t, err = tuning.Load(tuningPath); err != nil {
			return err
		}
	}

	mem := store.NewMemory()
	f := factory.NewUpgradeFactory(t, mem)
	s, err := api.BuildScenario(ctx, scenario, f, t)
	if err != nil {
		return err
	}
	w := world.Wrap(s)
	ledger := generic.NewLedger(mem)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tCONTAINER\tUPGRADE\tENTITY\tDIRECTION\tPOINTS\tUNITS")
	for i := 0; i < ticks; i++ {
		ts := w.Step()
		if err := ledger.AppendBatch(ctx, ts); err != nil {
			return err
		}
		for _, tr := range ts {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
				tr.Tick, tr.ContainerID, tr.UpgradeID, tr.EntityID, tr.Direction, tr.Points, tr.Units)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if snapshotPath == "" {
		return nil
	}
	var snap snapshot.SnapshotV1
	_ = w.Do(func(s *world.State) error {
		snap = snapshot.Export(s, f, scenario)
		return nil
	})
	if err := snapshot.WriteSnapshot(snapshotPath, snap); err != nil {
		return err
	}
	fmt.Printf("snapshot written to %s at tick %d\n", snapshotPath, snap.Header.Tick)
	return nil
}
