// Package main - точка входа движка графа знаний (Mastery Graph Engine).
//
// Движок отвечает за:
// - Таксономию академических концептов и типизированные связи между ними
// - Реестр мастерства: попытки, проценты, уровни и тренды по концептам
// - Журнал обучения: вехи первого знакомства и освоения концепта
// - Обнаружение пробелов в знаниях относительно требований класса
// - Best-effort доставку обновлений в реальном времени
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/EventHandlers)
// - Infrastructure: реализация репозиториев, внешние API
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/edubridge/mastery-graph/config"

	// Application layer
	"github.com/edubridge/mastery-graph/internal/application/command"
	"github.com/edubridge/mastery-graph/internal/application/eventhandler"
	"github.com/edubridge/mastery-graph/internal/application/query"

	// Domain layer
	"github.com/edubridge/mastery-graph/internal/domain/concept"
	"github.com/edubridge/mastery-graph/internal/domain/journey"
	"github.com/edubridge/mastery-graph/internal/domain/mastery"
	domainrealtime "github.com/edubridge/mastery-graph/internal/domain/realtime"
	"github.com/edubridge/mastery-graph/internal/domain/shared"

	// Infrastructure layer
	"github.com/edubridge/mastery-graph/internal/infrastructure/external/assignments"
	"github.com/edubridge/mastery-graph/internal/infrastructure/messaging"
	"github.com/edubridge/mastery-graph/internal/infrastructure/persistence/memory"
	"github.com/edubridge/mastery-graph/internal/infrastructure/persistence/postgres"
	"github.com/edubridge/mastery-graph/internal/infrastructure/realtime"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	// .env существует только в development, отсутствие файла не ошибка
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Mastery Graph Engine",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ВЫБОР СУБСТРАТА ХРАНЕНИЯ (PostgreSQL или in-memory)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		taxonomyRepo concept.Repository
		masteryRepo  mastery.Repository
		journeyRepo  journey.Repository
	)

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if err := dbConn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		log.Info("database connection established")

		// Миграции: схема должна быть актуальной до первой записи
		log.Info("checking database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")

		taxonomyRepo = postgres.NewConceptRepository(dbConn)
		masteryRepo = postgres.NewMasteryRepository(dbConn)
		journeyRepo = postgres.NewJourneyRepository(dbConn)
	} else {
		// In-memory субстрат для разработки и тестов
		log.Warn("DATABASE_URL is not set, using in-memory persistence")
		taxonomyRepo = memory.NewTaxonomyRepository()
		masteryRepo = memory.NewMasteryRepository()
		journeyRepo = memory.NewJourneyRepository()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ REDIS (event bus + realtime канал)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		eventBus      shared.EventBus
		pushChannel   domainrealtime.Channel
		closeEventBus func() error
	)

	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := messaging.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}

		redisClient, err := messaging.NewGoRedisClient(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer func() {
			log.Info("closing Redis connection...")
			_ = redisClient.Close()
		}()
		log.Info("Redis connection established")

		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisClient,
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		eventBus = redisBus
		closeEventBus = redisBus.Close

		channelConfig := realtime.DefaultRedisChannelConfig()
		channelConfig.ChannelPrefix = cfg.Realtime.ChannelPrefix
		channelConfig.PushTimeout = cfg.Realtime.PushTimeout
		pushChannel = realtime.NewRedisChannel(redisClient.Underlying(), log, channelConfig)
	} else {
		// Development без Redis: события остаются внутри процесса,
		// realtime-доставка уходит в лог
		log.Warn("Redis is disabled, using in-process event bus")
		inMemoryBus := messaging.NewInMemoryEventBus(localBusConfig)
		eventBus = inMemoryBus
		closeEventBus = inMemoryBus.Close
		pushChannel = realtime.NewLogChannel(log)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeEventBus()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing external clients...")
	assignmentsConfig := assignments.DefaultClientConfig(cfg.Assignments.BaseURL)
	assignmentsConfig.APIKey = cfg.Assignments.APIKey
	assignmentsConfig.Timeout = cfg.Assignments.RequestTimeout
	assignmentsConfig.MaxRetries = cfg.Assignments.MaxRetries
	assignmentsConfig.Logger = log
	assignmentsClient := assignments.NewClient(assignmentsConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing command and query handlers...")

	recordAttemptHandler := command.NewRecordAttemptHandler(
		masteryRepo,
		journeyRepo,
		taxonomyRepo,
		eventBus,
		log,
		command.RecordAttemptHandlerConfig{
			ConflictMaxAttempts:  cfg.Engine.ConflictMaxAttempts,
			ConflictInitialDelay: cfg.Engine.ConflictInitialDelay,
		},
	)
	ingestHandler := command.NewIngestExtractionHandler(taxonomyRepo, eventBus, log)

	chainHandler := query.NewGetPrerequisiteChainHandler(taxonomyRepo, masteryRepo)
	crossSubjectHandler := query.NewGetCrossSubjectConnectionsHandler(taxonomyRepo)
	graphHandler := query.NewGetKnowledgeGraphHandler(taxonomyRepo, masteryRepo)
	gapsHandler := query.NewIdentifyGapsHandler(assignmentsClient, taxonomyRepo, masteryRepo, log)

	// Обработчики вызываются встраивающим транспортом; движок сам по себе
	// транспорта не поднимает
	_ = recordAttemptHandler
	_ = ingestHandler
	_ = chainHandler
	_ = crossSubjectHandler
	_ = graphHandler
	_ = gapsHandler

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ПОДПИСКА ОБРАБОТЧИКОВ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	masteryChangedHandler := eventhandler.NewOnMasteryChangedHandler(
		pushChannel,
		log,
		eventhandler.MasteryChangedConfig{PushTimeout: cfg.Realtime.PushTimeout},
	)
	if err := masteryChangedHandler.Subscribe(eventBus); err != nil {
		return fmt.Errorf("failed to subscribe event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Mastery Graph Engine is running")

	// Ожидаем сигнал завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}

	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

// parseLogLevel переводит строковый уровень логирования в slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
