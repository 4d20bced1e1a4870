package main

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"shopcrawl/internal/collector"
	"shopcrawl/internal/config"
	"shopcrawl/internal/scraper"
)

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "", normalizeURL("  "))
	assert.Equal(t, "https://webscraper.io/test-sites", normalizeURL("webscraper.io/test-sites"))
	assert.Equal(t, "http://localhost:8080/list", normalizeURL(" http://localhost:8080/list "))
	assert.Equal(t, "HTTPS://EXAMPLE.COM", normalizeURL("HTTPS://EXAMPLE.COM"))
}

func TestFlagsOverrideConfig(t *testing.T) {
	chdir(t, t.TempDir())
	v := viper.New()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{
		"--max", "7",
		"--deep=false",
		"--engine", "http",
		"--rate", "1.5",
		"--card-wait", "2s",
		"--tsv",
		"-o", "out.tsv",
		"--sheet-mode", "append",
		"-f", "json",
	}))

	cfg, err := config.Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Max)
	assert.False(t, cfg.Deep)
	assert.Equal(t, "http", cfg.Browser.Engine)
	assert.Equal(t, 1.5, cfg.Browser.RequestsPerSecond)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.CardWait)
	assert.Equal(t, collector.DefaultDetailWait, cfg.Timeouts.DetailWait, "unset duration flags keep the default")
	assert.Equal(t, "out.tsv", cfg.Out)
	assert.Equal(t, '\t', cfg.Delimiter())
	assert.Equal(t, "append", cfg.Sheet.Mode)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, -1, cfg.MaxPages)
}

func TestEveryFlagIsBound(t *testing.T) {
	cmd := newRootCmd(viper.New())
	for name := range flagKeys {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestBuildOptions(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Browser.Engine = "http"
	cfg.Browser.Proxy = "http://127.0.0.1:7890"
	cfg.MaxPages = 3

	opts := buildOptions(cfg, "2024-05-01T10:00:00", zap.NewNop())

	assert.Equal(t, 100, opts.Max)
	assert.True(t, opts.Deep)
	assert.Equal(t, 3, opts.MaxPages)
	assert.Equal(t, scraper.EngineHTTP, opts.Engine)
	assert.Equal(t, "http://127.0.0.1:7890", opts.ProxyURL)
	assert.Equal(t, collector.DefaultCardWait, opts.CardWait)
	assert.Equal(t, cfg.Layout, opts.Layout)
	assert.Equal(t, "2024-05-01T10:00:00", opts.RunTimestamp)

	cfg.Timestamp = false
	assert.Empty(t, buildOptions(cfg, "2024-05-01T10:00:00", zap.NewNop()).RunTimestamp)
}

func TestLayoutCommand(t *testing.T) {
	chdir(t, t.TempDir())
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"layout"})

	require.NoError(t, cmd.Execute())

	var decoded struct {
		Layout collector.Layout `yaml:"layout"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, collector.DefaultLayout(), decoded.Layout)
}

func TestRunTimestampLayout(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Format(runTimestampLayout)
	assert.Equal(t, "2024-05-01T10:00:00", ts)
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
