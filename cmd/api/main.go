package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/weather-chat/backend/internal/config"
	"github.com/zhouzirui/weather-chat/backend/internal/handler"
	weatherModel "github.com/zhouzirui/weather-chat/backend/internal/model/weather"
	"github.com/zhouzirui/weather-chat/backend/internal/service/ai"
	"github.com/zhouzirui/weather-chat/backend/internal/service/geo"
	"github.com/zhouzirui/weather-chat/backend/internal/service/relay"
	"github.com/zhouzirui/weather-chat/backend/internal/service/weather"
	"github.com/zhouzirui/weather-chat/backend/pkg/logger"
)

type options struct {
	configPath string
	addr       string
	policy     string
	debug      bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "weather-chat",
		Short:        "Relay chat messages to an LLM with live weather context",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a TOML config file (default: $RELAY_CONFIG)")
	flags.StringVar(&opts.addr, "addr", "", "Listen address, overrides PORT")
	flags.StringVar(&opts.policy, "policy", "", "Weather policy: keyword or always")
	flags.BoolVar(&opts.debug, "debug", true, "Enable debug logging")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env 可选；缺失时在 logger 就绪后记录。
	envErr := godotenv.Load()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd, opts, cfg); err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if envErr != nil {
		log.Debug("no .env file loaded, using process environment only", zap.Error(envErr))
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}

	aiService, err := ai.NewService(ctx, chatModel, log)
	if err != nil {
		return fmt.Errorf("failed to initialize AI service: %w", err)
	}

	relayService := relay.NewService(
		cfg.Weather.Policy,
		geo.NewService(cfg.Geo, log),
		weather.NewService(cfg.Weather, log),
		aiService,
		log,
	)

	log.Info("chat relay initialized",
		zap.String("provider", cfg.AI.Provider),
		zap.String("model", cfg.AI.Model),
		zap.String("policy", string(relayService.Policy())),
		zap.Bool("debug", cfg.Debug),
	)

	router := handler.NewRouter(relayService, log)
	return startServer(ctx, cfg.Server, router, log)
}

// applyFlags lets explicitly set command line flags win over file and environment.
func applyFlags(cmd *cobra.Command, opts options, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if flags.Changed("policy") {
		policy, err := weatherModel.ParsePolicy(opts.policy)
		if err != nil {
			return err
		}
		cfg.Weather.Policy = policy
	}
	if flags.Changed("debug") {
		cfg.Debug = opts.debug
	}
	return nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("weather chat backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		log.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
