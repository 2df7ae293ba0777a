package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"image-workbench/internal/compressor"
	"image-workbench/internal/config"
	"image-workbench/internal/extractor"
	"image-workbench/internal/logger"
	"image-workbench/internal/presenter"
	"image-workbench/internal/preview"
	"image-workbench/internal/statistics"
	"image-workbench/internal/web"
	"image-workbench/internal/workbench"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	cfgFile   string
	verbose   bool
	quiet     bool
	port      int
	outputDir string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-workbench",
	Short: "Compress JPEG, PNG and WebP images in the browser or from the shell",
	Long: `ImageWorkbench accepts a single image, compresses it to fit a size and
dimension budget, and offers the result for download as compressed_<name>.

Features:
- Web interface with upload, drag and drop, live state over WebSocket
- Side by side original and compressed previews
- EXIF orientation correction before resizing
- Iterative quality and scale reduction toward a target size
- Command line compression and metadata inspection`,
	SilenceUsage: true,
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts the ImageWorkbench web server. Each browser gets its own
workbench session identified by a cookie.

Access the interface at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// compressCmd compresses one file without starting the server.
var compressCmd = &cobra.Command{
	Use:   "compress <file>",
	Short: "Compress a single image file",
	Long: `Runs a file through the same workbench the web interface uses and writes
compressed_<name> to the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args[0])
	},
}

// inspectCmd prints image metadata.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show metadata for an image file",
	Long: `Lists every tag exiftool reports for the file. Without an exiftool binary on
PATH, falls back to the built-in EXIF reader.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run web server on (default from config)")
	compressCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory for the compressed file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(inspectCmd)
}

// runServe starts the web server and shuts it down on SIGINT or SIGTERM.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port == 0 {
		port = cfg.Web.Port
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	server := web.NewServer(cfg, log, compressor.NewDefaultCompressor(cfg.Compression.Workers, log), stats)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if !quiet {
		fmt.Printf("ImageWorkbench started at http://localhost:%d\n", port)
		fmt.Printf("Press Ctrl+C to stop the server\n\n")
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
	}
	return nil
}

// runCompress drives one workbench from upload to download.
func runCompress(ctx context.Context, path string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !dirExists(outputDir) {
		return fmt.Errorf("output directory does not exist: %s", outputDir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	log := setupLogger(cfg)
	opts := compressor.Options{
		MaxSizeMB:        cfg.Compression.MaxSizeMB,
		MaxWidthOrHeight: cfg.Compression.MaxWidthOrHeight,
		UseWebWorker:     cfg.Compression.UseWebWorker,
		InitialQuality:   cfg.Compression.InitialQuality,
		MaxIteration:     cfg.Compression.MaxIteration,
	}
	wb := workbench.New(
		compressor.NewDefaultCompressor(cfg.Compression.Workers, log),
		opts,
		preview.NewRegistry(),
		nil,
		logger.WithOperation(log, "compress"),
	)
	defer wb.Reset()

	src, err := wb.AcceptPicked([]workbench.Candidate{{
		Name:     filepath.Base(path),
		MIMEType: web.ResolveMIMEType(mime.TypeByExtension(filepath.Ext(path)), data),
		Data:     data,
	}})
	var verr *workbench.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%s: %s", path, verr.Message())
	}
	if !quiet {
		fmt.Println(presenter.OriginalSizeLabel(src.Size))
	}

	if ctx == nil {
		ctx = context.Background()
	}
	outcome, err := wb.Compress(ctx).Wait(ctx)
	if outcome != workbench.OutcomeCommitted {
		if err == nil {
			err = errors.New(outcome.String())
		}
		return fmt.Errorf("%s: %s: %w", path, workbench.MsgCompressionFailed, err)
	}

	snap := wb.Snapshot()
	if !quiet {
		fmt.Println(presenter.CompressedSizeLabel(src.Size, snap.Compressed.Size))
	}

	d, err := wb.Download()
	if err != nil {
		return err
	}
	target := filepath.Join(outputDir, d.Filename)
	if err := os.WriteFile(target, d.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if !quiet {
		fmt.Printf("Saved %s\n", target)
	}
	return nil
}

// runInspect prints all metadata tags for a file.
func runInspect(path string) error {
	if !fileExists(path) {
		return fmt.Errorf("file does not exist: %s", path)
	}

	fmt.Printf("Inspecting: %s\n", path)

	if inspector, err := extractor.NewExiftoolInspector(); err == nil {
		defer inspector.Close()
		fields, err := inspector.Inspect(path)
		if err == nil {
			printFields(fields)
			return nil
		}
		fmt.Printf("exiftool failed (%v), using built-in reader\n", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	meta, err := extractor.NewEXIFExtractor(logrus.New()).Extract(f)
	if err != nil {
		fmt.Printf("No EXIF metadata: %v\n", err)
		return nil
	}

	fmt.Printf("Orientation: %s\n", meta.Orientation)
	if meta.DateTime != nil {
		fmt.Printf("Date:        %s\n", meta.DateTime.Format("2006-01-02 15:04:05"))
	}
	if meta.Camera != "" {
		fmt.Printf("Camera:      %s\n", meta.Camera)
	}
	if meta.Software != "" {
		fmt.Printf("Software:    %s\n", meta.Software)
	}
	if meta.Width > 0 && meta.Height > 0 {
		fmt.Printf("Dimensions:  %dx%d\n", meta.Width, meta.Height)
	}
	return nil
}

func printFields(fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-32s %v\n", k, fields[k])
	}
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
