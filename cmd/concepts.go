package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/jeseci/internal/skillgraph"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "Browse the concept graph",
}

var conceptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List concepts in dependency order (optionally filtered by category or tier)",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		tier, _ := cmd.Flags().GetInt("tier")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		var concepts []skillgraph.Concept
		for _, c := range cat.Graph.TopologicalOrder() {
			if category != "" && c.Category != category {
				continue
			}
			if tier != 0 && c.Tier != tier {
				continue
			}
			concepts = append(concepts, c)
		}
		if len(concepts) == 0 {
			return fmt.Errorf("no concepts match")
		}

		// Header.
		fmt.Printf("%-20s  %-28s  %4s  %-16s  %7s  %s\n",
			"ID", "Name", "Tier", "Category", "Content", "Prerequisites")
		fmt.Println(strings.Repeat("─", 105))

		for _, c := range concepts {
			name := c.Name
			if len(name) > 28 {
				name = name[:25] + "..."
			}
			items := len(cat.Index.Items(c.ID))
			prereqs := strings.Join(cat.Graph.Prerequisites(c.ID), ", ")
			if prereqs == "" {
				prereqs = "-"
			}
			fmt.Printf("%-20s  %-28s  %4d  %-16s  %7d  %s\n",
				c.ID, name, c.Tier, c.Category, items, prereqs)
		}

		fmt.Printf("\n%d concepts\n", len(concepts))
		return nil
	},
}

func init() {
	conceptsListCmd.Flags().String("category", "", "Filter by category (e.g. control-flow)")
	conceptsListCmd.Flags().Int("tier", 0, "Filter by concept tier")

	conceptsCmd.AddCommand(conceptsListCmd)
}
