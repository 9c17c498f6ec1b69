// Package config provides XML-based configuration management with environment overrides.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"DeliverableStudio"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Media intake configuration
	Media MediaConfig `xml:"Media"`

	// Workspace lifetime configuration
	Session SessionConfig `xml:"Session"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains the data directory and the optional remote object store.
// The remote store is used only when both RemoteURL and RemoteKey are set.
type StorageConfig struct {
	DataDirectory string `xml:"DataDirectory"`
	RemoteURL     string `xml:"RemoteURL"`
	RemoteKey     string `xml:"RemoteAccessKey"`
	RemoteBucket  string `xml:"RemoteBucket"`
	UploadTimeout int    `xml:"UploadTimeoutSeconds"`
}

// MediaConfig contains image intake limits
type MediaConfig struct {
	MaxFileSizeMB      int `xml:"MaxFileSizeMB"`
	MaxWidth           int `xml:"MaxWidth"`
	JPEGQuality        int `xml:"JPEGQuality"`
	MaxMediaPerProject int `xml:"MaxMediaPerProject"`
	ModerationDelayMs  int `xml:"ModerationDelayMs"`
	IntakeConcurrency  int `xml:"IntakeConcurrency"`
}

// SessionConfig controls how long idle workspaces and finished jobs are kept
type SessionConfig struct {
	WorkspaceTimeoutMinutes int `xml:"WorkspaceTimeoutMinutes"`
	JobRetentionMinutes     int `xml:"JobRetentionMinutes"`
	CleanupIntervalMinutes  int `xml:"CleanupIntervalMinutes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	LayoutRulesFile      string `xml:"LayoutRulesFile"`
	SeedDashboard        bool   `xml:"SeedDashboard"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "130M",
		},
		Storage: StorageConfig{
			DataDirectory: "./data",
			RemoteBucket:  "project-media",
			UploadTimeout: 30,
		},
		Media: MediaConfig{
			MaxFileSizeMB:      10,
			MaxWidth:           2000,
			JPEGQuality:        90,
			MaxMediaPerProject: 12,
			ModerationDelayMs:  300,
			IntakeConcurrency:  4,
		},
		Session: SessionConfig{
			WorkspaceTimeoutMinutes: 120,
			JobRetentionMinutes:     30,
			CleanupIntervalMinutes:  5,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			SeedDashboard:        true,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Deliverable Studio Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}

	// Remote object store credentials normally come from the environment only
	if url := os.Getenv("REMOTE_STORE_URL"); url != "" {
		c.Storage.RemoteURL = url
	}
	if key := os.Getenv("REMOTE_STORE_KEY"); key != "" {
		c.Storage.RemoteKey = key
	}
	if bucket := os.Getenv("REMOTE_STORE_BUCKET"); bucket != "" {
		c.Storage.RemoteBucket = bucket
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if c.Advanced.LayoutRulesFile != "" && !filepath.IsAbs(c.Advanced.LayoutRulesFile) {
		c.Advanced.LayoutRulesFile = filepath.Join(configDir, c.Advanced.LayoutRulesFile)
	}
}

// RemoteEnabled reports whether both remote store values are present.
func (c *AppConfig) RemoteEnabled() bool {
	return strings.TrimSpace(c.Storage.RemoteURL) != "" && strings.TrimSpace(c.Storage.RemoteKey) != ""
}

// MaxFileSizeBytes returns the per-file intake limit in bytes
func (c *AppConfig) MaxFileSizeBytes() int64 {
	return int64(c.Media.MaxFileSizeMB) * 1024 * 1024
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
