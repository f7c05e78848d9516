// Package config loads the INI configuration file describing disks to
// index, the staging store, client-adapter connection details, and the
// admission-gate thresholds, mirroring the field set of
// original_source/autotorrent's argparse+configparser setup.
package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// LinkType is the closed enum of staging link strategies.
type LinkType int

const (
	LinkSoft LinkType = iota
	LinkHard
)

// ErrUnknownLinkType is returned when the configured link_type is neither
// "soft" nor "hard".
var ErrUnknownLinkType = errors.New("config: unknown link type")

func parseLinkType(s string) (LinkType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "soft":
		return LinkSoft, nil
	case "hard":
		return LinkHard, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLinkType, s)
	}
}

func (l LinkType) String() string {
	if l == LinkHard {
		return "hard"
	}
	return "soft"
}

// ScanMode is one entry of the general.scan_mode list, naming which index
// tables participate in a match.
type ScanMode string

const (
	ScanNormal      ScanMode = "normal"
	ScanUnsplitable ScanMode = "unsplitable"
	ScanExact       ScanMode = "exact"
	ScanHashName    ScanMode = "hash_name"
	ScanHashSize    ScanMode = "hash_size"
	ScanHashSlow    ScanMode = "hash_slow"
)

// Config is the typed view over an autotorrent INI file.
type Config struct {
	DBPath      string
	Disks       []string
	IgnoreFiles []string
	StorePath   string

	AddLimitSize    int64
	AddLimitPercent float64

	LinkType       LinkType
	DeleteTorrents bool
	ScanMode       []ScanMode

	ClientName  string
	ClientURL   string
	ClientLabel string
}

// Load parses path as an INI file into a Config.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return FromFile(f)
}

// FromFile builds a Config from an already-loaded ini.File, so callers can
// construct one in-memory for tests without touching disk.
func FromFile(f *ini.File) (*Config, error) {
	general := f.Section("general")
	if general == nil || !f.HasSection("general") {
		return nil, fmt.Errorf("config: missing [general] section")
	}

	c := &Config{
		DBPath:    general.Key("db").String(),
		StorePath: general.Key("store_path").String(),
	}

	if raw := general.Key("ignore_files").String(); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				c.IgnoreFiles = append(c.IgnoreFiles, part)
			}
		}
	}

	var err error
	c.AddLimitSize, err = general.Key("add_limit_size").Int64()
	if err != nil {
		return nil, fmt.Errorf("config: add_limit_size: %w", err)
	}
	c.AddLimitPercent, err = general.Key("add_limit_percent").Float64()
	if err != nil {
		return nil, fmt.Errorf("config: add_limit_percent: %w", err)
	}

	c.LinkType, err = parseLinkType(general.Key("link_type").String())
	if err != nil {
		return nil, err
	}

	c.DeleteTorrents = general.Key("delete_torrents").MustBool(false)

	if raw := general.Key("scan_mode").String(); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				c.ScanMode = append(c.ScanMode, ScanMode(part))
			}
		}
	} else {
		c.ScanMode = []ScanMode{ScanNormal}
	}

	if disks := f.Section("disks"); disks != nil {
		for i := 1; ; i++ {
			key := fmt.Sprintf("disk%d", i)
			if !disks.HasKey(key) {
				break
			}
			c.Disks = append(c.Disks, disks.Key(key).String())
		}
	}

	if client := f.Section("client"); client != nil {
		c.ClientName = client.Key("client").String()
		c.ClientURL = client.Key("url").String()
		c.ClientLabel = client.Key("label").String()
	}

	return c, nil
}

// HasMode reports whether m is present in c.ScanMode.
func (c *Config) HasMode(m ScanMode) bool {
	for _, existing := range c.ScanMode {
		if existing == m {
			return true
		}
	}
	return false
}

// Save writes c back out as an INI file at path, in the same section/key
// layout Load expects — used by the config round-trip test.
func (c *Config) Save(path string) error {
	f := ini.Empty()

	general, err := f.NewSection("general")
	if err != nil {
		return err
	}
	general.Key("db").SetValue(c.DBPath)
	general.Key("store_path").SetValue(c.StorePath)
	general.Key("ignore_files").SetValue(strings.Join(c.IgnoreFiles, ","))
	general.Key("add_limit_size").SetValue(fmt.Sprintf("%d", c.AddLimitSize))
	general.Key("add_limit_percent").SetValue(fmt.Sprintf("%g", c.AddLimitPercent))
	general.Key("link_type").SetValue(c.LinkType.String())
	general.Key("delete_torrents").SetValue(fmt.Sprintf("%t", c.DeleteTorrents))

	modes := make([]string, len(c.ScanMode))
	for i, m := range c.ScanMode {
		modes[i] = string(m)
	}
	general.Key("scan_mode").SetValue(strings.Join(modes, ","))

	if len(c.Disks) > 0 {
		disks, err := f.NewSection("disks")
		if err != nil {
			return err
		}
		for i, d := range c.Disks {
			disks.Key(fmt.Sprintf("disk%d", i+1)).SetValue(d)
		}
	}

	if c.ClientName != "" {
		client, err := f.NewSection("client")
		if err != nil {
			return err
		}
		client.Key("client").SetValue(c.ClientName)
		client.Key("url").SetValue(c.ClientURL)
		client.Key("label").SetValue(c.ClientLabel)
	}

	return f.SaveTo(path)
}
