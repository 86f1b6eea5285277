package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/report"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the mastery view from the transaction log and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, _ := cmd.Flags().GetString("learner")
		snapshot, _ := cmd.Flags().GetBool("snapshot")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sys, err := openReadOnly(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeSystem(sys)

		learners := sys.Nodes.Learners()
		if learner != "" {
			learners = []string{learner}
		}
		if len(learners) == 0 {
			fmt.Println("No transactions recorded yet.")
			return nil
		}

		g := sys.Catalog.Graph()
		for _, l := range learners {
			txs, err := sys.Backend.Log.ForLearner(cmd.Context(), l)
			if err != nil {
				return fmt.Errorf("read log for %q: %w", l, err)
			}
			fmt.Println(report.Mastery(l, g, sys.Nodes.State(l)))
			fmt.Printf("%d transactions, unlocked: %v\n\n", len(txs), unlockedOrNone(sys.Nodes, l))
		}

		if snapshot {
			snap, err := sys.Engine.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Saved snapshot at sequence %d.\n", snap.Sequence)
		}
		return nil
	},
}

func unlockedOrNone(nodes *mastery.Service, learner string) any {
	if ids := nodes.UnlockedConcepts(learner); len(ids) > 0 {
		return ids
	}
	return "none"
}

func init() {
	replayCmd.Flags().String("learner", "", "Only print this learner")
	replayCmd.Flags().Bool("snapshot", false, "Save a snapshot of the rebuilt view")
}
