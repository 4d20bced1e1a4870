package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"shopcrawl/internal/collector"
	"shopcrawl/internal/formatter"
	"shopcrawl/internal/output"
	"shopcrawl/internal/scraper"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "SHOPCRAWL"

// Config is the full run configuration.
type Config struct {
	Site      string `mapstructure:"site" yaml:"site"`
	URL       string `mapstructure:"url" yaml:"url"`
	Max       int    `mapstructure:"max" yaml:"max"`
	Deep      bool   `mapstructure:"deep" yaml:"deep"`
	MaxPages  int    `mapstructure:"max_pages" yaml:"max_pages"`
	Out       string `mapstructure:"out" yaml:"out"`
	TSV       bool   `mapstructure:"tsv" yaml:"tsv"`
	Format    string `mapstructure:"format" yaml:"format"`
	Timestamp bool   `mapstructure:"timestamp" yaml:"timestamp"`

	Browser  BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Timeouts TimeoutConfig    `mapstructure:"timeouts" yaml:"timeouts"`
	Sheet    SheetConfig      `mapstructure:"sheet" yaml:"sheet"`
	Layout   collector.Layout `mapstructure:"layout" yaml:"layout"`
	Logger   LoggerConfig     `mapstructure:"logger" yaml:"logger"`
}

// BrowserConfig selects and tunes the Browsing Surface.
type BrowserConfig struct {
	Engine            string  `mapstructure:"engine" yaml:"engine"`
	ShowUI            bool    `mapstructure:"show_ui" yaml:"show_ui"`
	Stealth           bool    `mapstructure:"stealth" yaml:"stealth"`
	NoSandbox         bool    `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	Proxy             string  `mapstructure:"proxy" yaml:"proxy"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	RespectRobots     bool    `mapstructure:"respect_robots" yaml:"respect_robots"`
}

// TimeoutConfig holds the bounded waits of a run.
type TimeoutConfig struct {
	Navigation     time.Duration `mapstructure:"navigation" yaml:"navigation"`
	CardWait       time.Duration `mapstructure:"card_wait" yaml:"card_wait"`
	TransitionWait time.Duration `mapstructure:"transition_wait" yaml:"transition_wait"`
	DetailWait     time.Duration `mapstructure:"detail_wait" yaml:"detail_wait"`
}

// SheetConfig points at the Google spreadsheet results are written to. An
// empty ID disables the upload.
type SheetConfig struct {
	ID    string `mapstructure:"id" yaml:"id"`
	Tab   string `mapstructure:"tab" yaml:"tab"`
	Mode  string `mapstructure:"mode" yaml:"mode"`
	Creds string `mapstructure:"creds" yaml:"creds"`
}

// LoggerConfig controls zap output and file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("site", "webscraper")
	v.SetDefault("url", "")
	v.SetDefault("max", 100)
	v.SetDefault("deep", true)
	v.SetDefault("max_pages", -1)
	v.SetDefault("out", "laptops.csv")
	v.SetDefault("tsv", false)
	v.SetDefault("format", "text")
	v.SetDefault("timestamp", true)

	v.SetDefault("browser.engine", string(scraper.EngineRod))
	v.SetDefault("browser.show_ui", false)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.requests_per_second", 0)
	v.SetDefault("browser.respect_robots", true)

	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.card_wait", collector.DefaultCardWait.String())
	v.SetDefault("timeouts.transition_wait", collector.DefaultTransitionWait.String())
	v.SetDefault("timeouts.detail_wait", collector.DefaultDetailWait.String())

	v.SetDefault("sheet.id", "")
	v.SetDefault("sheet.tab", "Sheet1")
	v.SetDefault("sheet.mode", string(output.SheetModeReplace))
	v.SetDefault("sheet.creds", "credentials.json")

	l := collector.DefaultLayout()
	v.SetDefault("layout.cards", l.Cards)
	v.SetDefault("layout.price", l.Price)
	v.SetDefault("layout.name", l.Name)
	v.SetDefault("layout.description", l.Description)
	v.SetDefault("layout.pagination", l.Pagination)
	v.SetDefault("layout.pagination_entry", l.PaginationEntry)
	v.SetDefault("layout.pagination_link", l.PaginationLink)
	v.SetDefault("layout.detail_root", l.DetailRoot)
	v.SetDefault("layout.detail_name", l.DetailName)
	v.SetDefault("layout.detail_price", l.DetailPrice)
	v.SetDefault("layout.detail_description", l.DetailDescription)
	v.SetDefault("layout.banners", l.Banners)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "shopcrawl")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
}

// NewDefaultConfig returns the configuration built from defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads .env, the optional config file and SHOPCRAWL_* variables into
// v, then decodes and validates the result. Flags must already be bound to
// v. With an empty cfgFile, ./config.yaml is used when present.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("sheet.id", EnvPrefix+"_SHEET_ID", "SHEET_ID")
	_ = v.BindEnv("browser.proxy", EnvPrefix+"_BROWSER_PROXY", EnvPrefix+"_PROXY")

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in file paths.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Out, &c.Sheet.Creds, &c.Logger.LogFile} {
		if !strings.HasPrefix(*p, "~") {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand %s: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if !contains(formatter.Formats, c.Format) {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	switch scraper.Engine(c.Browser.Engine) {
	case scraper.EngineRod, scraper.EngineHTTP:
	default:
		return fmt.Errorf("browser.engine must be %q or %q, got %q", scraper.EngineRod, scraper.EngineHTTP, c.Browser.Engine)
	}
	if c.Browser.RequestsPerSecond < 0 {
		return errors.New("browser.requests_per_second must not be negative")
	}
	if _, err := output.ParseSheetMode(c.Sheet.Mode); err != nil {
		return fmt.Errorf("sheet.mode: %w", err)
	}
	if c.Sheet.ID != "" && c.Sheet.Tab == "" {
		return errors.New("sheet.tab is required when sheet.id is set")
	}

	for name, d := range map[string]time.Duration{
		"timeouts.navigation":      c.Timeouts.Navigation,
		"timeouts.card_wait":       c.Timeouts.CardWait,
		"timeouts.transition_wait": c.Timeouts.TransitionWait,
		"timeouts.detail_wait":     c.Timeouts.DetailWait,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}

	return ValidateLayout(c.Layout)
}

// ValidateLayout requires the selectors the collector cannot work without and
// compiles every selector.
func ValidateLayout(l collector.Layout) error {
	required := map[string][]string{
		"cards":       l.Cards,
		"price":       l.Price,
		"name":        l.Name,
		"detail_root": l.DetailRoot,
	}
	for name, sels := range required {
		if len(sels) == 0 {
			return fmt.Errorf("layout.%s must list at least one selector", name)
		}
	}
	for name, sels := range l.Selectors() {
		for _, sel := range sels {
			if _, err := cascadia.Compile(sel); err != nil {
				return fmt.Errorf("layout.%s: invalid selector %q: %w", name, sel, err)
			}
		}
	}
	return nil
}

// Delimiter returns the field separator of the output file. A .tsv
// extension selects tabs as well.
func (c *Config) Delimiter() rune {
	if c.TSV || strings.EqualFold(filepath.Ext(c.Out), ".tsv") {
		return '\t'
	}
	return ','
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
