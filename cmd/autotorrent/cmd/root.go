// Package cmd implements the autotorrent cobra CLI: rebuild, check, add,
// and dump subcommands sharing a config file and a console logger.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JohnDoee/autotorrent/internal/client"
	"github.com/JohnDoee/autotorrent/internal/client/noop"
	"github.com/JohnDoee/autotorrent/internal/client/rtorrent"
	"github.com/JohnDoee/autotorrent/internal/config"
	"github.com/JohnDoee/autotorrent/internal/fsindex"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "autotorrent",
	Short: "Cross-seed an already-downloaded file tree against new torrents",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "autotorrent.conf", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(rebuildCmd, checkCmd, addCmd, dumpCmd)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func openIndex(cfg *config.Config, log zerolog.Logger) (*fsindex.Index, error) {
	return fsindex.Open(cfg.DBPath, cfg.IgnoreFiles, modesFromConfig(cfg), log)
}

func modesFromConfig(cfg *config.Config) fsindex.Modes {
	return fsindex.Modes{
		Normal:      cfg.HasMode(config.ScanNormal),
		Unsplitable: cfg.HasMode(config.ScanUnsplitable),
		Exact:       cfg.HasMode(config.ScanExact),
		HashName:    cfg.HasMode(config.ScanHashName),
		HashSize:    cfg.HasMode(config.ScanHashSize),
		HashSlow:    cfg.HasMode(config.ScanHashSlow),
	}
}

func buildAdapter(cfg *config.Config) (client.Adapter, error) {
	switch cfg.ClientName {
	case "", "noop":
		return noop.New(), nil
	case "rtorrent":
		addr := strings.TrimPrefix(cfg.ClientURL, "scgi://")
		return rtorrent.New(addr, cfg.ClientLabel), nil
	default:
		return nil, fmt.Errorf("cmd: unknown client %q", cfg.ClientName)
	}
}
