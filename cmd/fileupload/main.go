// Точка входа сервиса загрузки файлов.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт blob store, сервисный слой и API handlers, запускает фоновую
// сверку, topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/fileupload/internal/api/handlers"
	"github.com/bigkaa/goartstore/fileupload/internal/api/middleware"
	"github.com/bigkaa/goartstore/fileupload/internal/config"
	"github.com/bigkaa/goartstore/fileupload/internal/database"
	"github.com/bigkaa/goartstore/fileupload/internal/repository"
	"github.com/bigkaa/goartstore/fileupload/internal/server"
	"github.com/bigkaa/goartstore/fileupload/internal/service"
	"github.com/bigkaa/goartstore/fileupload/internal/storage/blobstore"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		return err
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис загрузки файлов запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.Int64("max_file_size", cfg.MaxFileSize),
	)

	// 3. Blob store
	store, err := blobstore.New(cfg.DataDir, cfg.MaxFileSize)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		return err
	}

	// 4. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		return err
	}

	// 5. Подключение к PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		return err
	}
	defer pool.Close()

	// 5.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 6. Repository и сервисы
	fileRepo := repository.NewFileRepository(pool)
	cache := service.NewRecordCache(cfg.CacheSize, cfg.CacheTTL)
	uploadSvc := service.NewUploadService(store, fileRepo, logger)
	fileSvc := service.NewFileService(store, fileRepo, cache, logger)

	// 7. Фоновая сверка
	reconcileSvc := service.NewReconcileService(store, fileRepo, service.ReconcileOptions{
		Interval:     cfg.ReconcileInterval,
		OrphanGrace:  cfg.OrphanGrace,
		PruneOrphans: cfg.ReconcilePruneOrphans,
	}, logger)
	reconcileSvc.Start(ctx)
	defer reconcileSvc.Stop()

	// 8. topologymetrics — мониторинг PostgreSQL
	dephealthSvc, err := service.NewDephealthService(
		"fileupload",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL("postgres"),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 9. HTTP handlers и маршруты
	router := server.NewRouter(server.Handlers{
		Files:       handlers.NewFilesHandler(uploadSvc, fileSvc, cfg.MaxFileSize, logger),
		Health:      handlers.NewHealthHandler(database.NewReadinessChecker(pool), store),
		Maintenance: handlers.NewMaintenanceHandler(reconcileSvc, logger),
	},
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)

	// 10. Запуск сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, router)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Сервис загрузки файлов остановлен")
	return nil
}
