package cmd

import (
	"os"
	"os/signal"
	"syscall"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/convolog/internal/fsource"
	"github.com/bimmerbailey/convolog/internal/metrics"
	"github.com/bimmerbailey/convolog/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Serve the log browser API",
	Long: `Start the HTTP API: directory listing and raw streaming below the data
directory, a websocket parse endpoint that streams canonical events for a
path or URL, health checks and Prometheus metrics.

Endpoints:
  GET /api/fs/list?path=&sort=name|date
  GET /api/fs/stream?path=
  GET /api/parse      (websocket)
  GET /healthz
  GET /metrics

Examples:
  convolog serve
  convolog serve --addr 127.0.0.1:9000 --data-dir /srv/logs`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "extra browser origin allowed to open the parse websocket (repeatable)")
	serveCmd.Flags().Bool("allow-private-urls", false, "let parse-from-url fetch loopback and private addresses")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.allowed_origins", serveCmd.Flags().Lookup("allowed-origin"))
	_ = viper.BindPFlag("server.allow_private_urls", serveCmd.Flags().Lookup("allow-private-urls"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root, err := fsource.New(cfg.DataDir)
	if err != nil {
		return err
	}

	m := metrics.New()
	srv := server.New(server.Options{
		Root:             root,
		Pipeline:         newPipeline(cfg, m),
		Metrics:          m,
		Logger:           &zlog.Logger,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		URLHosts:         cfg.Server.URLHosts,
		AllowPrivateURLs: cfg.Server.AllowPrivateURLs,
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadHeaderTimeout)
}
