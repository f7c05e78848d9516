package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JohnDoee/autotorrent/internal/matcher"
	"github.com/JohnDoee/autotorrent/internal/pieceverify"
	"github.com/JohnDoee/autotorrent/pkg/bencode"
	"github.com/JohnDoee/autotorrent/pkg/metainfo"
)

var checkCmd = &cobra.Command{
	Use:   "check <torrent>",
	Short: "Dry-run a match report for a torrent without staging anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger()

		m, _, err := readTorrentFile(args[0])
		if err != nil {
			return err
		}

		idx, err := openIndex(cfg, log)
		if err != nil {
			return err
		}
		defer idx.Close()

		modes := modesFromConfig(cfg)
		opts := matcher.Options{
			Exact:    modes.Exact,
			HashName: modes.HashName,
			HashSize: modes.HashSize,
			HashSlow: modes.HashSlow,
		}

		res, err := matcher.Match(m, idx, opts, pieceverify.New(m))
		if err != nil {
			return fmt.Errorf("check: %w", err)
		}

		fmt.Printf("%s  mode=%s  found=%s  missing=%s\n",
			m.Name, res.Mode, humanize.Bytes(uint64(res.FoundBytes)), humanize.Bytes(uint64(res.MissingBytes)))
		for i, f := range m.Files {
			fmt.Printf("  %-10s %s\n", res.Files[i].Kind.String(), f.JoinedPath())
		}

		admitted := matcher.Admit(res, cfg.AddLimitSize, cfg.AddLimitPercent)
		fmt.Printf("admitted=%t\n", admitted)
		return nil
	},
}

func readTorrentFile(path string) (*metainfo.Metainfo, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read torrent file: %w", err)
	}
	v, err := bencode.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("decode torrent file: %w", err)
	}
	m, err := metainfo.Parse(v)
	if err != nil {
		return nil, nil, fmt.Errorf("parse metainfo: %w", err)
	}
	return m, raw, nil
}
