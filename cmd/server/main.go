package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/mgallego/colegio-intranet/internal/application/service"
	"github.com/mgallego/colegio-intranet/internal/application/workflow"
	"github.com/mgallego/colegio-intranet/internal/config"
	httpserver "github.com/mgallego/colegio-intranet/internal/interfaces/http"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/persistence/repository"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/persistence/sqlite"
	"github.com/mgallego/colegio-intranet/internal/infrastructure/worker"
	"github.com/mgallego/colegio-intranet/pkg/database"
	"github.com/mgallego/colegio-intranet/pkg/utils"
)

func main() {
	// .env is optional, real deployments configure through the environment
	_ = gotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting colegio intranet",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		BusyTimeout:     cfg.Database.BusyTimeout,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Transaction-aware DB wrapper shared by every repository
	sqliteDB := sqlite.NewDB(db.DB, logger)

	definitionRepo := repository.NewDefinitionRepository(sqliteDB, logger)
	requestRepo := repository.NewRequestRepository(sqliteDB, logger)
	taskRepo := repository.NewTaskRepository(sqliteDB, logger)
	historyRepo := repository.NewHistoryRepository(sqliteDB, logger)
	notificationRepo := repository.NewNotificationRepository(sqliteDB, logger)
	calendarRepo := repository.NewCalendarRepository(sqliteDB, logger)
	documentRepo := repository.NewDocumentRepository(sqliteDB, logger)

	// Transition validators referenced from workflow definitions. A
	// definition can only name keys registered here.
	validators := workflow.NewValidatorRegistry()
	validators.Register(workflow.ValidatorCheckDocuments, workflow.NewDocumentsValidator(documentRepo))
	validators.Register(workflow.ValidatorCheckVotingClosed, workflow.NewVotingClosedValidator(taskRepo))

	// Post-commit auto-actions, same closed-set rule as validators
	actions := workflow.NewActionDispatcher(logger)
	actions.Register(workflow.ActionCreateNotification, workflow.NewNotificationAction(notificationRepo))
	actions.Register(workflow.ActionCreateCalendarEvent, workflow.NewCalendarEventAction(requestRepo, calendarRepo))
	actions.Register(workflow.ActionRemoveCalendarEvent, workflow.NewRemoveCalendarEventAction(calendarRepo))
	actions.Register(workflow.ActionNotifyAssignees, workflow.NewNotifyAssigneesAction(taskRepo, notificationRepo))

	engine := workflow.NewEngine(definitionRepo, requestRepo, taskRepo,
		historyRepo, validators, actions, sqliteDB, logger)

	serviceLogger := &zapLoggerAdapter{logger: logger}
	requestService := service.NewRequestService(requestRepo, definitionRepo, documentRepo,
		notificationRepo, historyRepo, engine, sqliteDB, serviceLogger)
	taskService := service.NewTaskService(taskRepo, definitionRepo, notificationRepo,
		engine, sqliteDB, serviceLogger)
	adminService := service.NewWorkflowAdminService(definitionRepo, requestRepo, taskRepo,
		validators, actions, sqliteDB, serviceLogger)
	notificationService := service.NewNotificationService(notificationRepo, serviceLogger)

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		requestService,
		taskService,
		adminService,
		notificationService,
		serviceLogger,
	)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers, stopped after the HTTP server drains
	workerManager := worker.NewManager(logger)
	workerManager.Register(worker.NewReminderWorker(
		worker.DefaultReminderWorkerConfig(), taskRepo, notificationRepo, logger))
	if err := workerManager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	defer workerManager.StopAll()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

func configPath() string {
	if path := os.Getenv("INTRANET_CONFIG"); path != "" {
		return path
	}
	return "configs/config.yaml"
}

// zapLoggerAdapter adapts zap.Logger to the keysAndValues logging interfaces
// declared by the service and HTTP layers
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields turns alternating key/value pairs into zap fields
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
