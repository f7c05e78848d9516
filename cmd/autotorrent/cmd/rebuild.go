package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the file index from the configured disks",
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger()

		idx, err := openIndex(cfg, log)
		if err != nil {
			return err
		}
		defer idx.Close()

		if err := idx.Rebuild(cfg.Disks, true); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		fmt.Println("index rebuilt")
		return nil
	},
}
