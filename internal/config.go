package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Collection CollectionConfig  `yaml:"collection"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Watch      WatchConfig       `yaml:"watch"`
	MCP        MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Collection.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Watch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// CollectionConfig locates the image directory and the snapshot files.
//
// The snapshot files live in DataDir. Their base names are never tracked
// as entries, even when DataDir is inside Root.
type CollectionConfig struct {
	Root       string `yaml:"root"`
	DataDir    string `yaml:"data_dir"`
	DBFile     string `yaml:"db_file"`
	BackupFile string `yaml:"backup_file"`
}

// DBPath returns the primary snapshot path.
func (c *CollectionConfig) DBPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

// BackupPath returns the backup snapshot path.
func (c *CollectionConfig) BackupPath() string {
	return filepath.Join(c.DataDir, c.BackupFile)
}

// Validate validates the collection configuration.
func (c *CollectionConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.DBFile, validation.Required, validation.By(plainFileName)),
		validation.Field(&c.BackupFile, validation.Required, validation.By(plainFileName)),
	); err != nil {
		return err
	}
	if c.DBFile == c.BackupFile {
		return fmt.Errorf("collection: db_file and backup_file are both %q", c.DBFile)
	}
	return nil
}

func plainFileName(value any) error {
	s, _ := value.(string)
	if s != filepath.Base(s) || strings.ContainsRune(s, '/') {
		return errors.New("must be a file name without directories")
	}
	return nil
}

// SQLiteConfig holds the SQLite export configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce is how long the tree must stay quiet before a rescan.
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// MCPConfig controls the stdio tool server.
type MCPConfig struct {
	// Autosave writes the snapshot after every mutating tool call.
	Autosave bool `yaml:"autosave"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Collection: CollectionConfig{
			Root:       ".",
			DataDir:    ".",
			DBFile:     "cowbump.db",
			BackupFile: "cowbump.db.bak",
		},
		SQLite: SQLiteConfig{
			Path: "./cowbump-index.sqlite",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		MCP: MCPConfig{
			Autosave: true,
		},
	}
}
