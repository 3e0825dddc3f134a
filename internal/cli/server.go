package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/catalog"
	"skillquiz-service/internal/config"
	"skillquiz-service/internal/infra/amqp"
	"skillquiz-service/internal/metrics"
	"skillquiz-service/internal/timer"
	transport "skillquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides server.port and PORT)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	redisClient, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := amqp.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	countdown := timer.NewCountdown()
	defer countdown.Stop()

	recorder := metrics.New()
	recorder.TrackCountdowns(countdown.Active)

	cat, err := catalog.Builtin()
	if err != nil {
		return err
	}

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithPublisher(publisher),
		app.WithMetrics(recorder),
		app.WithScheduler(countdown),
		app.WithAdmins(cfg.Quiz.Admins...),
	}
	community := cachedCommunity(redisClient, st.community, config.Duration(cfg.Quiz.CacheTTL, 5*time.Minute))
	sessions := sessionRepository(redisClient, config.Duration(cfg.Redis.TTL, 10*time.Minute),
		app.WithRequireAnswer(cfg.Quiz.RequireAnswer))

	provider := app.NewQuestionProvider(cat, community, catalog.NewShuffler(time.Now().UnixNano()))
	results := app.NewResultService(st.results, st.profiles, opts...)
	profiles := app.NewProfileService(st.profiles, opts...)
	moderation := app.NewModerationService(community, st.profiles, opts...)
	quizzes := app.NewQuizService(sessions, provider, results, app.QuizServiceConfig{
		TimeLimit:     config.Duration(cfg.Quiz.TimeLimit, 600*time.Second),
		QuestionLimit: cfg.Quiz.QuestionLimit,
		TickInterval:  config.Duration(cfg.Quiz.TickInterval, time.Second),
	}, opts...)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(transport.RouterConfig{
		REST:    transport.NewRESTHandler(provider, moderation, profiles, results, quizzes),
		WS:      transport.NewWSHandler(quizzes, logger),
		Metrics: recorder.Handler(),
		Logger:  logger,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service", "port", finalPort, "storage", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
