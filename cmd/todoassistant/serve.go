package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"todo-assistant/internal/agent"
	"todo-assistant/internal/bot"
	"todo-assistant/internal/config"
	"todo-assistant/internal/feed"
	"todo-assistant/internal/repository"
	"todo-assistant/internal/rest"
	"todo-assistant/internal/rest/handlers"
	"todo-assistant/internal/service"
	"todo-assistant/internal/whatsapp"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, chat relay and housekeeping jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

// bootstrap loads config, logger and database shared by every command.
func bootstrap(configPath string) (config.Config, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	log, err := setupLogger(cfg.Env, cfg.LogFile)
	if err != nil {
		return cfg, nil, nil, err
	}
	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, log, db, nil
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, db, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	httpClient := &http.Client{Timeout: cfg.EnhanceTimeout + 5*time.Second}
	broker := feed.NewBroker(log)

	taskSvc := service.NewTaskService(repository.NewTaskRepository(db), broker, log)
	enhancer := service.NewEnhancementService(taskSvc, selectEnricher(cfg, httpClient, log), cfg.EnhanceTimeout, log)
	if enhancer.Configured() {
		taskSvc.SetAutoEnhancer(enhancer)
	}

	sessionSvc := service.NewSessionService(repository.NewSessionRepository(db), cfg.SessionTTL, log)

	zapi := whatsapp.NewClient(whatsapp.Config{
		BaseURL:     cfg.ZAPIBaseURL,
		InstanceID:  cfg.ZAPIInstanceID,
		Token:       cfg.ZAPIToken,
		ClientToken: cfg.ZAPIClientToken,
	}, &http.Client{Timeout: 30 * time.Second}, log)

	var fallback service.Sender
	if cfg.WhatsAppConfigured() {
		fallback = zapi
	}
	messenger := service.NewMessenger(sessionSvc, fallback, log)

	var forwarder service.Forwarder
	if cfg.ChatWebhookURL != "" {
		forwarder = agent.NewWebhookForwarder(cfg.ChatWebhookURL, &http.Client{Timeout: cfg.ForwardTimeout})
	} else {
		log.Warn("reasoning agent webhook not configured, chat messages will get an apology")
	}

	whatsappRelay := service.NewRelayService(sessionSvc, messenger, forwarder, service.RelayOptions{
		Source:         "whatsapp_chatbot",
		Keyword:        cfg.ActivationKeyword,
		ForwardTimeout: cfg.ForwardTimeout,
	}, log)

	var telegram *bot.Channel
	if cfg.TelegramToken != "" {
		telegram, err = bot.New(cfg.TelegramToken, log)
		if err != nil {
			return err
		}
		messenger.Route(bot.AddressPrefix, telegram)
		telegram.SetHandler(service.NewRelayService(sessionSvc, messenger, forwarder, service.RelayOptions{
			Source:         "telegram_chatbot",
			Keyword:        cfg.ActivationKeyword,
			ForwardTimeout: cfg.ForwardTimeout,
		}, log))
	}

	scheduler := service.NewSchedulerService(time.UTC, log)
	if _, err := scheduler.ScheduleSessionSweep(sessionSvc, cfg.SessionSweepInterval); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	router := rest.NewRouter(log,
		handlers.NewTaskHandler(taskSvc, enhancer, broker, log),
		handlers.NewTodoHandler(taskSvc, log),
		handlers.NewWhatsAppHandler(whatsappRelay, messenger, zapi, log),
		handlers.NewSessionHandler(sessionSvc, log),
	)
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	// Event streams never finish on their own; end them so Shutdown can drain.
	server.RegisterOnShutdown(broker.Close)

	errCh := make(chan error, 2)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if telegram != nil {
		go func() {
			if err := telegram.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.WithError(err).Error("component stopped with error")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	enhancer.Wait()
	log.Info("shutdown complete")
	return nil
}

// selectEnricher prefers the n8n workflow, then OpenAI, then none.
func selectEnricher(cfg config.Config, client *http.Client, log *logrus.Logger) service.Enricher {
	switch {
	case cfg.EnrichWebhookURL != "":
		log.Info("enrichment agent: n8n webhook")
		return agent.NewWebhookEnricher(cfg.EnrichWebhookURL, client)
	case cfg.OpenAIAPIKey != "":
		log.WithField("model", cfg.OpenAIModel).Info("enrichment agent: openai")
		return agent.NewOpenAIEnricher(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		log.Warn("no enrichment agent configured, enhancement disabled")
		return nil
	}
}
