package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/hud"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start gesture detection",
	Long: `Open the camera and start recognizing gestures.

Bindings are read from the database in the data directory. On first run
the database is seeded with the bindings from the config file.

By default the local HTTP API is served as well; use --no-server to
disable it. --hud draws a status line in the terminal and --tray shows
the state in the system tray.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("hud", false, "show a status line in the terminal")
	runCmd.Flags().Bool("tray", false, "show a system tray icon")
	runCmd.Flags().Bool("no-server", false, "do not serve the HTTP API")
	runCmd.Flags().Bool("dry-run", false, "log plugin actions instead of running them")
	runCmd.Flags().String("record", "", "write every detected frame to `FILE` for replay")
	runCmd.Flags().String("mode", "", "start in this binding mode")
	runCmd.Flags().Int("device", 0, "camera device index")
	runCmd.Flags().String("addr", "", "HTTP listen address")

	v.BindPFlag("camera.device", runCmd.Flags().Lookup("device"))
	v.BindPFlag("server.addr", runCmd.Flags().Lookup("addr"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	showHUD, _ := cmd.Flags().GetBool("hud")
	showTray, _ := cmd.Flags().GetBool("tray")
	noServer, _ := cmd.Flags().GetBool("no-server")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	recordPath, _ := cmd.Flags().GetString("record")
	mode, _ := cmd.Flags().GetString("mode")

	if showHUD {
		logFile, err := openLog(cfg)
		if err != nil {
			return err
		}
		defer logFile.Close()
		quietLogs(logFile)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	a, err := app.New(app.Config{Settings: cfg, Store: st, DryRun: dryRun})
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Failed to discover plugins: %v", err)
	}
	if err := a.LoadBindings(); err != nil {
		return err
	}
	if mode != "" {
		a.SetMode(mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if recordPath != "" {
		f, err := os.Create(recordPath)
		if err != nil {
			return fmt.Errorf("creating recording: %w", err)
		}
		defer f.Close()

		rec := app.NewRecorder(f)
		a.OnFrame(rec.Observe)
		defer func() {
			if err := rec.Err(); err != nil {
				log.Printf("Recording stopped early: %v", err)
			}
		}()
	}

	if showHUD {
		h := hud.New(os.Stdout)
		a.OnFrame(h.Observe)
		defer h.Clear()
	}

	if cfg.Server.Enabled && !noServer {
		srv := server.New(server.Config{
			StaticDir: findWebDir(cfg),
			Store:     st,
			App:       a,
		})
		defer srv.Close()

		httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Server failed: %v", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()

		fmt.Printf("Serving API on http://%s\n", cfg.Server.Addr)
	}

	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		return err
	}

	if showTray {
		runTray(ctx, stop, a, cfg)
	} else {
		<-ctx.Done()
	}

	a.Stop()
	return nil
}

// runTray blocks in the system tray loop until quit from the menu or ctx ends.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App, cfg *config.Config) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnQuit(stop)
	t.OnSettings(func() {
		log.Printf("Settings are served at http://%s", cfg.Server.Addr)
	})
	t.SetMode(a.Mode())

	a.OnFrame(func(res app.FrameResult) {
		if res.Change == nil {
			return
		}
		t.SetGesture(res.Committed.String())
		t.SetMode(res.Mode)
		if res.Dispatch.Status == dispatch.StatusFired {
			t.SetLastAction(res.Dispatch.Action)
		}
	})

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
	stop()
}

// openLog opens mudra.log in the data directory for appending.
func openLog(cfg *config.Config) (*os.File, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.DataDir, "mudra.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// findWebDir searches for the web directory: the configured path, its
// parents relative to the working directory, then the data directory.
// Returns the first existing directory or empty string if none found.
func findWebDir(cfg *config.Config) string {
	candidates := []string{cfg.Server.StaticDir}
	if !filepath.IsAbs(cfg.Server.StaticDir) {
		candidates = append(candidates,
			filepath.Join("..", cfg.Server.StaticDir),
			filepath.Join("..", "..", cfg.Server.StaticDir))
	}
	candidates = append(candidates, filepath.Join(cfg.DataDir, "web"))

	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
