package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"shopcrawl/internal/collector"
	"shopcrawl/internal/config"
	"shopcrawl/internal/formatter"
	"shopcrawl/internal/observability"
	"shopcrawl/internal/output"
	"shopcrawl/internal/scraper"
	_ "shopcrawl/internal/sites/webscraper"
)

var version = "dev"

// runTimestampLayout is UTC with second precision, e.g. 2024-05-01T10:00:00.
const runTimestampLayout = "2006-01-02T15:04:05"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:     "shopcrawl [URL]",
		Short:   "Collect products from a paginated shop catalog",
		Version: version,
		Long: `shopcrawl walks the pages of a product listing in a real browser, reads
name, price and description from every product card and optionally
opens each product's detail page to complete the record.

Results are written to a CSV/TSV file, printed to stdout and, when a
spreadsheet id is configured, uploaded to Google Sheets.`,
		Example: `  # First 100 laptops from the webscraper.io test shop, detail pages included
  shopcrawl

  # Listing fields only, 20 products, as JSON
  shopcrawl --max 20 --deep=false -f json

  # Fetch without a browser, at most 2 requests per second
  shopcrawl --engine http --rate 2 --out laptops.tsv --tsv

  # Append to a Google sheet
  shopcrawl --sheet-id 1AbC... --sheet-mode append --gcp-creds sa.json`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, cfgFile, args)
		},
	}

	flags := rootCmd.Flags()
	flags.Int("max", 100, "Maximum number of products to collect")
	flags.Bool("deep", true, "Open each product's detail page to complete its fields")
	flags.Int("max-pages", -1, "Max pages to paginate (-1 for no limit)")
	flags.StringP("out", "o", "laptops.csv", "Delimited output file (empty to skip)")
	flags.Bool("tsv", false, "Write the output file tab separated")
	flags.StringP("format", "f", "text", "Stdout format ("+strings.Join(formatter.Formats, ", ")+")")
	flags.String("site", "webscraper", "Site scraper ("+strings.Join(scraper.Names(), ", ")+")")
	flags.String("engine", string(scraper.EngineRod), "Browsing engine (rod, http)")
	flags.Bool("showui", false, "Show browser UI (disable headless mode)")
	flags.Bool("stealth", false, "Apply stealth evasions to browser pages")
	flags.Bool("no-sandbox", true, "Launch Chrome without its sandbox")
	flags.StringP("proxy", "p", "", "Proxy URL (e.g. http://127.0.0.1:7890), defaults to SHOPCRAWL_PROXY env var")
	flags.Float64("rate", 0, "Requests per second for the http engine (0 for no limit)")
	flags.Bool("robots", true, "Honor robots.txt with the http engine")
	flags.DurationP("timeout", "t", 30*time.Second, "Timeout of the initial page load")
	flags.Duration("card-wait", 0, "Wait for product cards on each page (default 15s)")
	flags.Duration("transition-wait", 0, "Wait for the next page after clicking pagination (default 10s)")
	flags.Duration("detail-wait", 0, "Wait for a detail page to render (default 10s)")
	flags.String("sheet-id", "", "Google spreadsheet id; enables the upload")
	flags.String("sheet-tab", "Sheet1", "Worksheet name")
	flags.String("sheet-mode", string(output.SheetModeReplace), "Sheet write mode (replace, append, new-sheet)")
	flags.String("gcp-creds", "credentials.json", "Service account JSON file or inline JSON")
	flags.Bool("timestamp", true, "Append the run timestamp to stdout rows")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Also write JSON logs to this rotated file")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	bindFlags(v, flags, flagKeys)

	rootCmd.AddCommand(newLayoutCmd(v, &cfgFile))
	return rootCmd
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"max":             "max",
	"deep":            "deep",
	"max-pages":       "max_pages",
	"out":             "out",
	"tsv":             "tsv",
	"format":          "format",
	"site":            "site",
	"engine":          "browser.engine",
	"showui":          "browser.show_ui",
	"stealth":         "browser.stealth",
	"no-sandbox":      "browser.no_sandbox",
	"proxy":           "browser.proxy",
	"rate":            "browser.requests_per_second",
	"robots":          "browser.respect_robots",
	"timeout":         "timeouts.navigation",
	"card-wait":       "timeouts.card_wait",
	"transition-wait": "timeouts.transition_wait",
	"detail-wait":     "timeouts.detail_wait",
	"sheet-id":        "sheet.id",
	"sheet-tab":       "sheet.tab",
	"sheet-mode":      "sheet.mode",
	"gcp-creds":       "sheet.creds",
	"timestamp":       "timestamp",
	"log-level":       "logger.level",
	"log-file":        "logger.log_file",
}

// bindFlags binds every flag in keys to its configuration key so flags
// override config files and environment variables.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func run(ctx context.Context, v *viper.Viper, cfgFile string, args []string) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()

	log := observability.GetLogger().With(zap.String("run_id", uuid.NewString()))

	target := cfg.URL
	if len(args) == 1 {
		target = normalizeURL(args[0])
	}

	s, ok := scraper.Get(cfg.Site)
	if !ok {
		return fmt.Errorf("unknown site: %s", cfg.Site)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runTS := time.Now().UTC().Format(runTimestampLayout)
	content, err := s.Scrape(ctx, target, buildOptions(cfg, runTS, log))
	if err != nil {
		log.Error("collection failed", zap.Error(err))
		return fmt.Errorf("failed to scrape: %w", err)
	}
	products := content.Products()

	if cfg.Out != "" {
		if err := output.WriteDelimitedFile(cfg.Out, products, cfg.Delimiter()); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info("output written", zap.String("file", cfg.Out), zap.Int("rows", len(products)))
	}

	if cfg.Sheet.ID != "" {
		if err := uploadToSheet(ctx, cfg, products, runTS, log); err != nil {
			log.Error("sheet upload failed", zap.Error(err))
		}
	}

	formatted, err := formatter.Format(content, cfg.Format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	if formatted != "" {
		fmt.Fprint(os.Stdout, formatted)
		if !strings.HasSuffix(formatted, "\n") {
			fmt.Fprintln(os.Stdout)
		}
	}
	return nil
}

func buildOptions(cfg *config.Config, runTS string, log *zap.Logger) scraper.Options {
	opts := scraper.Options{
		Max:               cfg.Max,
		Deep:              cfg.Deep,
		MaxPages:          cfg.MaxPages,
		Engine:            scraper.Engine(cfg.Browser.Engine),
		ShowUI:            cfg.Browser.ShowUI,
		Stealth:           cfg.Browser.Stealth,
		NoSandbox:         cfg.Browser.NoSandbox,
		ProxyURL:          cfg.Browser.Proxy,
		Timeout:           cfg.Timeouts.Navigation,
		CardWait:          cfg.Timeouts.CardWait,
		TransitionWait:    cfg.Timeouts.TransitionWait,
		DetailWait:        cfg.Timeouts.DetailWait,
		RequestsPerSecond: cfg.Browser.RequestsPerSecond,
		RespectRobots:     cfg.Browser.RespectRobots,
		Layout:            cfg.Layout,
		Logger:            log,
	}
	if cfg.Timestamp {
		opts.RunTimestamp = runTS
	}
	return opts
}

func uploadToSheet(ctx context.Context, cfg *config.Config, products []collector.Product, runTS string, log *zap.Logger) error {
	mode, err := output.ParseSheetMode(cfg.Sheet.Mode)
	if err != nil {
		return err
	}
	creds, err := output.LoadCredentials(cfg.Sheet.Creds)
	if err != nil {
		return err
	}
	w, err := output.NewSheetsWriter(ctx, creds, log)
	if err != nil {
		return err
	}
	tab, err := w.Write(ctx, products, output.SheetTarget{
		SpreadsheetID: cfg.Sheet.ID,
		Tab:           cfg.Sheet.Tab,
		Mode:          mode,
	}, runTS)
	if err != nil {
		return err
	}
	log.Info("sheet updated", zap.String("tab", tab), zap.Int("rows", len(products)))
	return nil
}

// newLayoutCmd prints the effective selector layout as YAML, ready to be
// copied into config.yaml and edited for another catalog.
func newLayoutCmd(v *viper.Viper, cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:          "layout",
		Short:        "Print the effective selector layout",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *cfgFile)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(map[string]any{"layout": cfg.Layout})
			if err != nil {
				return fmt.Errorf("failed to encode layout: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// normalizeURL normalizes URL, adds https:// if no protocol prefix
func normalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return rawURL
	}
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "https://" + rawURL
	}
	return rawURL
}
