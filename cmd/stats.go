package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/jeseci/internal/mastery"
	"github.com/abhisek/jeseci/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a learner's mastery",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, _ := cmd.Flags().GetString("learner")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sys, err := openReadOnly(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeSystem(sys)

		g := sys.Catalog.Graph()
		nodes := make([]mastery.Node, 0, g.Len())
		for _, c := range g.Concepts() {
			n, err := sys.Engine.GetMasteryState(learner, c.ID)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
		}
		fmt.Println(report.Mastery(learner, g, nodes))
		return nil
	},
}

func init() {
	statsCmd.Flags().String("learner", "", "Learner ID")
	statsCmd.MarkFlagRequired("learner")
}
