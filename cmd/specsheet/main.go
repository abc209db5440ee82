// Package main is the specsheet CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/hyperjump/specsheet/internal/cli"
	"github.com/hyperjump/specsheet/internal/config"
	"github.com/hyperjump/specsheet/internal/extract"
	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/pagefields"
	"github.com/hyperjump/specsheet/internal/pipeline"
	"github.com/hyperjump/specsheet/internal/server"
	"github.com/hyperjump/specsheet/internal/sheet"
	"github.com/hyperjump/specsheet/internal/storage"
	"github.com/hyperjump/specsheet/internal/watcher"
	"github.com/hyperjump/specsheet/pkg/utils"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/specsheet/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing default file falls back to built-in defaults so one-off extraction needs no setup.
// Environment overrides are applied and the result is validated.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "extract":
		runExtract()
	case "watch":
		runWatch()
	case "fields":
		runFields()
	case "batches":
		runBatches()
	case "version", "--version", "-v":
		fmt.Printf("specsheet version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustSetup loads config and builds the logger, exiting on failure.
func mustSetup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	cfg.Debug = debugMode
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
	)
	return cfg, resolved, logger
}

// Components holds the long-lived pieces shared by the commands.
type Components struct {
	Storage   storage.Storage
	Fields    *fields.Set
	Processor *pipeline.Processor
}

// Close releases the storage handle, if one was opened.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// newProcessor wires the PDF reader and the page field extractor from cfg.
func newProcessor(cfg *config.Config, set *fields.Set, logger *zap.Logger) (*pipeline.Processor, error) {
	classifier, err := cfg.Extraction.Classifier()
	if err != nil {
		return nil, err
	}
	collision, err := cfg.Extraction.CollisionPolicy()
	if err != nil {
		return nil, err
	}
	reader := extract.NewExtractor(
		extract.WithMaxSize(cfg.Extraction.MaxFileSize()),
		extract.WithXTolerance(cfg.Extraction.XTolerance),
		extract.WithLogger(logger),
	)
	pageFields := pagefields.NewExtractor(
		fields.NewMatcher(set, fields.WithLogger(logger)),
		pagefields.WithClassifier(classifier),
		pagefields.WithCollision(collision),
		pagefields.WithLogger(logger),
	)
	return pipeline.NewProcessor(set,
		pipeline.WithPageReader(reader),
		pipeline.WithFieldExtractor(pageFields),
		pipeline.WithSkipUnreadable(cfg.Extraction.SkipUnreadable),
		pipeline.WithLogger(logger),
	), nil
}

// initializeComponents builds the processor and, when withStorage is set, opens the batch database.
func initializeComponents(cfg *config.Config, logger *zap.Logger, withStorage bool) (*Components, error) {
	set, err := cfg.FieldSet()
	if err != nil {
		return nil, err
	}
	processor, err := newProcessor(cfg, set, logger)
	if err != nil {
		return nil, err
	}
	c := &Components{Fields: set, Processor: processor}
	if withStorage {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Storage = store
	}
	return c, nil
}

func newWatcher(ctx context.Context, cfg *config.Config, processor watcher.BatchProcessor, store watcher.BatchStore, logger *zap.Logger) *watcher.Watcher {
	convOpts := []watcher.ConverterOption{
		watcher.WithConverterLogger(logger),
		watcher.WithSheetOptions(sheet.Options{SheetName: cfg.Export.SheetName}),
	}
	if store != nil {
		convOpts = append(convOpts, watcher.WithStore(store))
	}
	conv := watcher.NewConverter(processor, cfg.Watch.OutputDirectory, convOpts...)
	return watcher.NewWatcher(
		cfg.Watch.Directories,
		conv.Handle(ctx),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		watcher.WithIgnoreDir(cfg.Watch.OutputDirectory),
		watcher.WithLogger(logger),
	)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (dropped labels, page words, watch events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watchSvc := newWatcher(watchCtx, cfg, components.Processor, components.Storage, logger)
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Processor,
		components.Fields,
		components.Storage,
		cfg,
		logger,
		watchSvc,
		resolvedConfigPath,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.StringP("out", "o", "", "write the rows to this .xlsx file")
	output := fs.String("output", "text", "output format for stdout: text or json")
	skip := fs.Bool("skip-unreadable", false, "skip unreadable PDFs instead of failing the batch")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: specsheet extract [flags] <pdf>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, _, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	if *skip {
		cfg.Extraction.SkipUnreadable = true
	}
	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	batch, err := components.Processor.ProcessFiles(context.Background(), fs.Args()...)
	if err != nil {
		fmt.Printf("Extraction failed: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		path := *out
		if filepath.Ext(path) == "" {
			path += ".xlsx"
		}
		if err := sheet.WriteFile(path, batch.Columns, batch.Rows, sheet.Options{SheetName: cfg.Export.SheetName}); err != nil {
			fmt.Printf("Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(batch.Rows), path)
		if format == cli.OutputText {
			return
		}
	}
	if err := cli.WriteBatch(os.Stdout, batch, format); err != nil {
		fmt.Printf("Failed to write output: %v\n", err)
		os.Exit(1)
	}
}

func runWatch() {
	if len(os.Args) >= 3 {
		switch os.Args[2] {
		case "add", "remove", "list":
			runWatchRemote(os.Args[2], os.Args[3:])
			return
		}
	}
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outDir := fs.String("out-dir", "", "directory for converted .xlsx files (default: next to each PDF)")
	recursive := fs.Bool("recursive", true, "also watch subdirectories")
	noSync := fs.Bool("no-sync", false, "do not convert PDFs already in the inbox at start")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: specsheet watch [flags] [dir]...\n")
		fmt.Fprintf(fs.Output(), "       specsheet watch <add|remove|list> [--server URL] [path]\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	if fs.NArg() > 0 {
		cfg.Watch.Directories = nil
		for _, d := range fs.Args() {
			abs, err := filepath.Abs(d)
			if err != nil {
				fmt.Printf("Invalid directory %s: %v\n", d, err)
				os.Exit(1)
			}
			cfg.Watch.Directories = append(cfg.Watch.Directories, abs)
		}
	}
	if len(cfg.Watch.Directories) == 0 {
		fmt.Println("No inbox directories: pass them as arguments or set watch.directories in the config.")
		os.Exit(1)
	}
	if fs.Changed("out-dir") {
		cfg.Watch.OutputDirectory = *outDir
	}
	if fs.Changed("recursive") {
		cfg.Watch.Recursive = recursive
	}

	components, err := initializeComponents(cfg, logger, false)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := newWatcher(ctx, cfg, components.Processor, nil, logger)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()
	if !*noSync {
		w.SyncExistingFiles()
	}
	logger.Info("watching for spec sheets",
		zap.Strings("directories", w.Directories()),
		zap.String("output_directory", cfg.Watch.OutputDirectory))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")
}

// runWatchRemote manages the inbox directories of a running server.
func runWatchRemote(sub string, args []string) {
	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(args)
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: specsheet watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: specsheet watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := getJSON(*serverURL+"/api/v1/watch/directories", &out); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	}
}

func runFields() {
	fs := flag.NewFlagSet("fields", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	set, err := cfg.FieldSet()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := cli.WriteFields(os.Stdout, set, format); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runBatches() {
	fs := flag.NewFlagSet("batches", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used when --server is empty)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the database directly)")
	limit := fs.Int("limit", 20, "maximum number of batches to list")
	offset := fs.Int("offset", 0, "number of batches to skip")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: specsheet batches [flags]\n")
		fmt.Fprintf(fs.Output(), "       specsheet batches delete [flags] <batch-id>\n\n")
		fs.PrintDefaults()
	}
	args := os.Args[2:]
	deleting := len(args) > 0 && args[0] == "delete"
	if deleting {
		args = args[1:]
	}
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if deleting {
		if fs.NArg() < 1 {
			fs.Usage()
			os.Exit(1)
		}
		id := fs.Arg(0)
		if err := deleteBatch(*serverURL, *configPath, id); err != nil {
			fmt.Printf("Delete failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Deleted: %s\n", id)
		return
	}

	list, err := listBatches(*serverURL, *configPath, *offset, *limit)
	if err != nil {
		fmt.Printf("List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteBatchList(os.Stdout, list, format); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func listBatches(serverURL, configPath string, offset, limit int) (*cli.BatchList, error) {
	if serverURL != "" {
		q := url.Values{}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(limit))
		var list cli.BatchList
		if err := getJSON(serverURL+"/api/v1/batches?"+q.Encode(), &list); err != nil {
			return nil, err
		}
		return &list, nil
	}
	store, err := openStorage(configPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	ctx := context.Background()
	summaries, err := store.ListBatches(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := store.CountBatches(ctx)
	if err != nil {
		return nil, err
	}
	list := &cli.BatchList{Total: total, Batches: make([]models.BatchSummary, len(summaries))}
	for i, s := range summaries {
		list.Batches[i] = *s
	}
	return list, nil
}

func deleteBatch(serverURL, configPath, id string) error {
	if serverURL != "" {
		req, err := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/batches/"+url.PathEscape(id), nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return responseError(resp)
		}
		return nil
	}
	store, err := openStorage(configPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.DeleteBatch(context.Background(), id)
}

func openStorage(configPath string) (storage.Storage, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
}

func getJSON(u string, v any) error {
	resp, err := http.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// responseError turns a non-success API response into an error carrying its message.
func responseError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("%s (%d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
}

func printUsage() {
	fmt.Println(`specsheet - turn PDF spec sheets into spreadsheet rows

Usage:
  specsheet <command> [flags]

Commands:
  server     Start the web UI and HTTP API
  extract    Extract rows from PDF files (stdout or --out file.xlsx)
  watch      Convert PDFs dropped into inbox directories; add|remove|list manage a running server
  fields     List the canonical fields and their label aliases
  batches    List stored batches; "batches delete <id>" removes one
  version    Print version
  help       Show this help

Examples:
  specsheet extract order-1234.pdf
  specsheet extract --out sheets.xlsx *.pdf
  specsheet extract --output json order-1234.pdf
  specsheet watch --out-dir ~/SpecSheets/xlsx ~/SpecSheets/inbox
  specsheet server --config ./config.yaml

Environment variables prefixed with SPECSHEET_ override config values,
e.g. SPECSHEET_SERVER_PORT=9000 or SPECSHEET_EXTRACTION_MODE=gold.`)
}
