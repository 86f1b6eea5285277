package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the catalog: duplicate IDs, dangling edges, cycles and item tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return fmt.Errorf("catalog invalid: %w", err)
		}

		var withContent, unreachable int
		for _, c := range cat.Graph.Concepts() {
			selectable := 0
			for _, r := range cat.Index.Items(c.ID) {
				if r.Tier >= cfg.Engine.TierCount {
					fmt.Printf("warning: %s %q has tier %d, outside 0..%d\n", r.Kind, r.ID, r.Tier, cfg.Engine.TierCount-1)
					unreachable++
					continue
				}
				selectable++
			}
			if selectable == 0 {
				fmt.Printf("warning: concept %q has no selectable content\n", c.ID)
				continue
			}
			withContent++
		}

		fmt.Printf("catalog OK: %d concepts, %d edges, %d with content", cat.Graph.Len(), len(cat.Graph.Edges()), withContent)
		if unreachable > 0 {
			fmt.Printf(", %d items out of tier range", unreachable)
		}
		fmt.Println()
		return nil
	},
}
