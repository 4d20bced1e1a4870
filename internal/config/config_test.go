package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcrawl/internal/collector"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "webscraper", cfg.Site)
	assert.Equal(t, 100, cfg.Max)
	assert.True(t, cfg.Deep)
	assert.Equal(t, -1, cfg.MaxPages)
	assert.Equal(t, "laptops.csv", cfg.Out)
	assert.Equal(t, "text", cfg.Format)
	assert.True(t, cfg.Timestamp)
	assert.Equal(t, "rod", cfg.Browser.Engine)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.True(t, cfg.Browser.RespectRobots)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, collector.DefaultCardWait, cfg.Timeouts.CardWait)
	assert.Equal(t, collector.DefaultTransitionWait, cfg.Timeouts.TransitionWait)
	assert.Equal(t, collector.DefaultDetailWait, cfg.Timeouts.DetailWait)
	assert.Equal(t, "Sheet1", cfg.Sheet.Tab)
	assert.Equal(t, "replace", cfg.Sheet.Mode)
	assert.Equal(t, "credentials.json", cfg.Sheet.Creds)
	assert.Equal(t, collector.DefaultLayout(), cfg.Layout)
	assert.Equal(t, "info", cfg.Logger.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("defaults without a config file", func(t *testing.T) {
		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Max)
	})

	t.Run("config file and environment", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shop.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
max: 25
deep: false
format: json
browser:
  engine: http
  requests_per_second: 2.5
timeouts:
  card_wait: 3s
layout:
  cards: ["li.product"]
  price: [".amount"]
  name: ["h2 a"]
sheet:
  id: from-file
`), 0o644))
		t.Setenv("SHOPCRAWL_MAX", "30")
		t.Setenv("SHEET_ID", "from-env")
		t.Setenv("SHOPCRAWL_PROXY", "http://127.0.0.1:7890")

		cfg, err := Load(viper.New(), path)
		require.NoError(t, err)

		assert.Equal(t, 30, cfg.Max, "environment beats the file")
		assert.False(t, cfg.Deep)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, "http", cfg.Browser.Engine)
		assert.Equal(t, 2.5, cfg.Browser.RequestsPerSecond)
		assert.Equal(t, "http://127.0.0.1:7890", cfg.Browser.Proxy)
		assert.Equal(t, 3*time.Second, cfg.Timeouts.CardWait)
		assert.Equal(t, collector.DefaultDetailWait, cfg.Timeouts.DetailWait)
		assert.Equal(t, []string{"li.product"}, cfg.Layout.Cards)
		assert.Equal(t, collector.DefaultLayout().DetailRoot, cfg.Layout.DetailRoot)
		assert.Equal(t, "from-env", cfg.Sheet.ID)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("home paths are expanded", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv("SHOPCRAWL_OUT", "~/laptops.csv")
		homedir.Reset()
		t.Cleanup(homedir.Reset)

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "laptops.csv"), cfg.Out)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		t.Setenv("SHOPCRAWL_FORMAT", "xml")
		_, err := Load(viper.New(), "")
		assert.ErrorContains(t, err, "invalid output format")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad engine", func(c *Config) { c.Browser.Engine = "selenium" }, "browser.engine"},
		{"negative rate", func(c *Config) { c.Browser.RequestsPerSecond = -1 }, "requests_per_second"},
		{"bad sheet mode", func(c *Config) { c.Sheet.Mode = "overwrite" }, "sheet.mode"},
		{"sheet id without tab", func(c *Config) { c.Sheet.ID = "abc"; c.Sheet.Tab = "" }, "sheet.tab"},
		{"zero wait", func(c *Config) { c.Timeouts.TransitionWait = 0 }, "timeouts.transition_wait"},
		{"no card selector", func(c *Config) { c.Layout.Cards = nil }, "layout.cards"},
		{"broken selector", func(c *Config) { c.Layout.Description = []string{"p[class"} }, "layout.description"},
		{"tsv format ok", func(c *Config) { c.Format = "tsv" }, ""},
		{"http engine ok", func(c *Config) { c.Browser.Engine = "http" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDelimiter(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, ',', cfg.Delimiter())

	cfg.Out = "laptops.TSV"
	assert.Equal(t, '\t', cfg.Delimiter())

	cfg.Out = "laptops.csv"
	cfg.TSV = true
	assert.Equal(t, '\t', cfg.Delimiter())
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
