package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JohnDoee/autotorrent/internal/assembler"
	"github.com/JohnDoee/autotorrent/internal/handler"
	"github.com/JohnDoee/autotorrent/internal/matcher"
)

var addCmd = &cobra.Command{
	Use:   "add <torrent>",
	Short: "Match, stage, and hand a torrent to the configured client",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger()

		m, raw, err := readTorrentFile(args[0])
		if err != nil {
			return err
		}

		idx, err := openIndex(cfg, log)
		if err != nil {
			return err
		}
		defer idx.Close()

		adapter, err := buildAdapter(cfg)
		if err != nil {
			return err
		}

		modes := modesFromConfig(cfg)
		linkType := assembler.LinkSoft
		if cfg.LinkType.String() == "hard" {
			linkType = assembler.LinkHard
		}

		outcome := handler.Handle(m, raw, idx, adapter, handler.Options{
			StorePath:       cfg.StorePath,
			AddLimitSize:    cfg.AddLimitSize,
			AddLimitPercent: cfg.AddLimitPercent,
			LinkType:        linkType,
			Matcher: matcher.Options{
				Exact:    modes.Exact,
				HashName: modes.HashName,
				HashSize: modes.HashSize,
				HashSlow: modes.HashSlow,
			},
		})

		fmt.Printf("%s: %s\n", m.Name, outcome.Status)
		if outcome.Result != nil {
			fmt.Printf("  found=%s missing=%s\n",
				humanize.Bytes(uint64(outcome.Result.FoundBytes)),
				humanize.Bytes(uint64(outcome.Result.MissingBytes)))
		}
		if outcome.Err != nil {
			fmt.Fprintln(os.Stderr, outcome.Err)
		}

		if cfg.DeleteTorrents && outcome.Status.String() == "OK" {
			if err := os.Remove(args[0]); err != nil {
				fmt.Fprintf(os.Stderr, "warning: could not remove %s: %v\n", args[0], err)
			}
		}
		return nil
	},
}
