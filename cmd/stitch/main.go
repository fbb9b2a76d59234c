// Command stitch runs the coding-assistant backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stitchcode/stitch/internal/chat"
	"github.com/stitchcode/stitch/internal/checkpoint"
	"github.com/stitchcode/stitch/internal/config"
	"github.com/stitchcode/stitch/internal/db"
	"github.com/stitchcode/stitch/internal/docqueue"
	"github.com/stitchcode/stitch/internal/httpapi"
	"github.com/stitchcode/stitch/internal/message"
	"github.com/stitchcode/stitch/internal/racp"
	"github.com/stitchcode/stitch/internal/tokenizer"
	"github.com/stitchcode/stitch/internal/treesitter"
	"github.com/stitchcode/stitch/internal/workspace"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "stitch",
		Short:        "Coding-assistant backend: retrieval, context, chat, checkpoints",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config")

	root.AddCommand(serveCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	var workspaceDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if workspaceDir != "" {
				cfg.Workspace = workspaceDir
			}
			if cfg.Workspace == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				cfg.Workspace = cwd
			}
			if addr != "" {
				cfg.Options.HTTPAddr = addr
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&workspaceDir, "workspace", "", "project root (defaults to cwd)")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	setupLogging(cfg.DataDir())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws := workspace.New(cfg.Workspace, excludeGlobs(cfg))
	if err := ws.Refresh(ctx); err != nil {
		return fmt.Errorf("index workspace: %w", err)
	}

	conn, err := db.Connect(ctx, cfg.DataDir())
	if err != nil {
		return err
	}
	defer conn.Close()
	messages := message.NewService(db.New(conn))

	parser := treesitter.NewParser()
	defer parser.Close()
	markup := treesitter.NewMarkupService(parser)

	encoders := tokenizer.NewRegistry()
	tok := encoders.ForModel(cfg.Model)

	pp := racp.New(markup, ws, ws, tok, settingsFromConfig(cfg))
	driver := chat.NewDriver(pp, tok, nil)

	var checkpoints *checkpoint.Service
	if _, err := os.Stat(filepath.Join(cfg.Workspace, ".git")); err == nil {
		checkpoints = checkpoint.NewService(cfg.Workspace)
	}

	if docsRoot := docsRoot(cfg); docsRoot != "" {
		docs := docqueue.NewService(docsRoot, nil)
		if err := docs.EnqueueAll(ctx); err != nil {
			slog.Warn("Initial documentation scan failed", "err", err)
		}
		go func() {
			if err := docs.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Documentation watcher stopped", "err", err)
			}
		}()
	}

	api := httpapi.NewServer(pp, driver, checkpoints, "")
	api.SetMessages(messages)
	api.SetWorkspace(ws)
	server := &http.Server{
		Addr:              cfg.Options.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr, "workspace", cfg.Workspace)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupLogging(dataDir string) {
	var out io.Writer = os.Stderr
	if dataDir != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filepath.Join(dataDir, "logs", "stitch.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

func excludeGlobs(cfg *config.Config) []string {
	if cfg.Options == nil {
		return nil
	}
	return cfg.Options.ExcludeGlobs
}

func docsRoot(cfg *config.Config) string {
	if cfg.Options == nil {
		return ""
	}
	return cfg.Options.DocsRoot
}

// settingsFromConfig layers configured postprocess options over defaults.
func settingsFromConfig(cfg *config.Config) racp.Settings {
	settings := racp.DefaultSettings()
	if cfg.Options == nil || cfg.Options.Postprocess == nil {
		return settings
	}
	opts := cfg.Options.Postprocess
	if opts.UsefulBackground > 0 {
		settings.UsefulBackground = float32(opts.UsefulBackground)
	}
	if opts.UsefulSymbolDefault > 0 {
		settings.UsefulSymbolDefault = float32(opts.UsefulSymbolDefault)
	}
	if opts.DegradeParentCoef > 0 {
		settings.DegradeParentCoef = float32(opts.DegradeParentCoef)
	}
	if opts.DegradeBodyCoef > 0 {
		settings.DegradeBodyCoef = float32(opts.DegradeBodyCoef)
	}
	if opts.CommentsPropagateUpCoef > 0 {
		settings.CommentsPropagateUpCoef = float32(opts.CommentsPropagateUpCoef)
	}
	if opts.TakeFloor != 0 {
		settings.TakeFloor = float32(opts.TakeFloor)
	}
	settings.CloseSmallGaps = !opts.DisableGapClosing
	return settings
}
