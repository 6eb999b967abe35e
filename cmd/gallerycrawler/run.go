package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/gallery-crawler/internal/api"
	"github.com/JakeFAU/gallery-crawler/internal/app"
	"github.com/JakeFAU/gallery-crawler/internal/config"
	"github.com/JakeFAU/gallery-crawler/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a crawl session",
		Long: `Starts a crawl session. Press Enter to download the next image,
"s" to save the current image, "a" to toggle auto-play, "p" to print the
status and "q" to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, *cfgFile)
		},
	}
	flags := cmd.Flags()
	flags.Bool("no-proxy", false, "connect directly instead of through the SOCKS5 proxy")
	flags.Bool("autoplay", false, "advance automatically every --interval seconds")
	flags.Float64("interval", 3, "auto-play interval in seconds (fractions allowed)")
	flags.String("save-dir", "", "directory saved images are written to")
	flags.Int("port", 8080, "serve the control API on this port")
	return cmd
}

func runSession(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("session close failed", zap.Error(err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(ctx) //nolint:wrapcheck
	})
	if cfg.Server.Enabled {
		apiServer := api.NewServer(session, session.Registry(), session.Metrics().Middleware, logger.Named("api"))
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http server started", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
			return nil
		})
	}

	// Reading stdin cannot be interrupted, so it stays outside the group.
	go readCommands(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), session, stop, logger)

	err = g.Wait()
	logger.Info("shutdown complete")
	if err != nil {
		return fmt.Errorf("run session: %w", err)
	}
	return nil
}

// controls is the subset of *app.App driven from the terminal.
type controls interface {
	Next()
	ToggleAutoPlay() bool
	Status() app.Status
	Save(ctx context.Context) (string, error)
}

// readCommands applies one command per input line until EOF, "q" or ctx ends.
func readCommands(ctx context.Context, in io.Reader, out io.Writer, c controls, quit func(), logger *zap.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "", "n", "next":
			c.Next()
		case "s", "save":
			location, err := c.Save(ctx)
			if err != nil {
				fmt.Fprintf(out, "save failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "saved %s\n", location)
		case "a", "auto":
			if c.ToggleAutoPlay() {
				fmt.Fprintln(out, "auto-play on")
			} else {
				fmt.Fprintln(out, "auto-play off")
			}
		case "p", "status":
			printStatus(out, c.Status())
		case "q", "quit":
			quit()
			return
		default:
			fmt.Fprintln(out, `commands: <enter> next, s save, a toggle auto-play, p status, q quit`)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Warn("stdin read failed", zap.Error(err))
	}
}

func printStatus(out io.Writer, st app.Status) {
	fmt.Fprintf(out, "progress=%.0f auto_play=%t interval=%.2fs images=%d failures=%d\n",
		st.Progress, st.AutoPlay, st.IntervalSeconds, st.Images, st.Failures)
	if st.LastURL != "" {
		fmt.Fprintf(out, "current: %s\n", st.LastURL)
	}
	if st.LastError != "" {
		fmt.Fprintf(out, "last error: %s\n", st.LastError)
	}
}
