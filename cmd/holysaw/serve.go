package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/holysaw/holysaw/report"
	"github.com/holysaw/holysaw/server"
	"github.com/holysaw/holysaw/store/backend"
	"github.com/holysaw/holysaw/worker"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the synthesis HTTP server",
	Long: `Serves POST /synthesize, GET /results/{id}/{wav|trace}, /healthz and /metrics.
Rendered artifacts are kept in the store selected in the configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, closer, err := backend.Open(ctx, backend.Options{
			Backend:       cfg.Store.Backend,
			RedisAddr:     cfg.Store.RedisAddr,
			RedisPassword: cfg.Store.RedisPassword,
			RedisDB:       cfg.Store.RedisDB,
			BoltPath:      cfg.Store.BoltPath,
			Prefix:        cfg.Store.Prefix,
			TTL:           cfg.Server.ResultTTL,
		})
		if err != nil {
			return err
		}
		defer closer.Close()

		format, err := report.ParseFormat(cfg.Render.TraceFormat)
		if err != nil {
			return err
		}
		w, err := worker.New(
			worker.WithStore(st),
			worker.WithLogger(logger),
			worker.WithTraceFormat(format),
			worker.WithMaxStopMs(cfg.Server.MaxStopMs),
			worker.WithoutSamples(),
		)
		if err != nil {
			return err
		}
		workerCtx, cancelWorker := context.WithCancel(context.Background())
		defer cancelWorker()
		go w.Run(workerCtx)

		logger.Info("store opened", "backend", cfg.Store.Backend)
		srv := server.New(w, st, server.WithLogger(logger), server.WithMaxStopMs(cfg.Server.MaxStopMs))
		return srv.ListenAndServe(ctx, addr, cfg.Server.ShutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
