package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/ratingscout/internal/config"
	"github.com/John-Robertt/ratingscout/internal/server"
)

func newServeCommand(root *rootFlags) *cobra.Command {
	var (
		addr   string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动上传/下载服务（POST /upload，GET /download/{name}）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := loadConfig(config.CLIArgs{ConfigPath: root.configPath})
			if err != nil {
				return err
			}
			logger, err := newLogger(eff, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			engine, err := buildEngine(eff, logger)
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(outDir)
			if err != nil {
				return err
			}

			handler := server.New(server.Options{
				Runner: newRunner(eff, engine, nil),
				OutDir: dir,
				Logger: logger,
			})
			srv := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", "addr", addr, "out_dir", dir)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("服务启动失败：%w", err)
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			logger.Info("server shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "监听地址")
	cmd.Flags().StringVar(&outDir, "out-dir", "reports", "报告保存目录")
	return cmd
}
