package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ukaji3/xltable-go/internal/web"
	"github.com/ukaji3/xltable-go/pkg/xltable"
	"github.com/ukaji3/xltable-go/pkg/xltable/mapping"
)

func newServeCmd() *cobra.Command {
	var (
		mappingFile string
		port        int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve extraction over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mapping") {
				cfg.Extract.MappingFile = mappingFile
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			logger, err := setupLogging(cfg)
			if err != nil {
				return err
			}

			var decl *mapping.File
			if cfg.Extract.MappingFile != "" {
				if decl, err = mapping.LoadFile(cfg.Extract.MappingFile); err != nil {
					return fmt.Errorf("load mapping: %w", err)
				}
			}

			server := web.NewServer(web.Config{
				Mappings:      decl,
				Reporter:      xltable.NewReporter(logger, version, cfg.Extract.Verbose),
				MaxUploadSize: cfg.Server.MaxUploadSize,
				ReadTimeout:   cfg.Server.ReadTimeout,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(cfg.Server.Addr())
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "Default YAML mapping file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default: SERVER_PORT)")
	return cmd
}
