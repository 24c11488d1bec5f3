package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/cubetime/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions and averages over a local HTTP API",
	Long: `Run the JSON API in the foreground so companion timers and scripts can
record solves and read averages. SIGHUP reloads the auth settings from the
config file; SIGINT or SIGTERM saves and exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides server.host)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	log := a.logger

	if cmd.Flags().Changed("host") {
		a.cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		a.cfg.Server.Port = servePort
	}
	if err := a.cfg.Validate(); err != nil {
		_ = a.close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.start(ctx)

	srv := server.New(a.cfg, a.store, a.agg, log, Version)
	srv.OnChange(a.markDirty)

	sighupCh := make(chan os.Signal, 1)
	signal.Notify(sighupCh, syscall.SIGHUP)
	defer signal.Stop(sighupCh)

	go func() {
		for {
			select {
			case <-sighupCh:
				log.Info("SIGHUP received, reloading configuration")

				newCfg, err := loadConfig()
				if err == nil {
					err = newCfg.Validate()
				}
				if err != nil {
					log.Error("invalid configuration, reload aborted", "error", err)
					continue
				}
				srv.ReloadConfig(newCfg)
			case <-ctx.Done():
				return
			}
		}
	}()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		log.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	log.Info("cubetime serving", "addr", srv.Addr(), "version", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())

	serveErr := srv.Start()
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	} else {
		stop()
	}
	<-shutdownDone

	closeErr := a.close()
	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	log.Info("cubetime stopped")
	return closeErr
}
