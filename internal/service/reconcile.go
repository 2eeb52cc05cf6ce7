// reconcile.go — фоновая сверка директории blob с индексом метаданных.
//
// Обнаруживает проблемы:
//   - orphan_blob: blob на диске без записи в индексе
//     (например, после ошибки записи метаданных при загрузке)
//   - dangling_record: запись в индексе без blob на диске
//
// Orphan blob моложе grace-периода не считаются проблемой: загрузка
// может находиться между сохранением содержимого и записью в индекс.
// При включённом prune orphan blob старше grace-периода удаляются.
//
// Запускается как горутина с периодическим тикером (FU_RECONCILE_INTERVAL)
// и вручную через POST /maintenance/reconcile.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/fileupload/internal/repository"
	"github.com/bigkaa/goartstore/fileupload/internal/storage/blobstore"
)

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fu_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fu_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой",
	}, []string{"type"})

	reconcilePrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fu_reconcile_pruned_total",
		Help: "Общее количество orphan blob, удалённых сверкой",
	})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fu_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// IssueType — тип проблемы, найденной сверкой.
type IssueType string

const (
	// IssueOrphanBlob — blob без записи в индексе.
	IssueOrphanBlob IssueType = "orphan_blob"
	// IssueDanglingRecord — запись без blob.
	IssueDanglingRecord IssueType = "dangling_record"
)

// ReconcileIssue — одна проблема, найденная сверкой.
type ReconcileIssue struct {
	Type        IssueType `json:"type"`
	StoredName  string    `json:"stored_name"`
	FileID      *int64    `json:"file_id,omitempty"`
	Pruned      bool      `json:"pruned,omitempty"`
	Description string    `json:"description"`
}

// ReconcileSummary — сводка по результатам сверки.
type ReconcileSummary struct {
	OrphanBlobs     int `json:"orphan_blobs"`
	DanglingRecords int `json:"dangling_records"`
	PrunedBlobs     int `json:"pruned_blobs"`
	Ok              int `json:"ok"`
}

// ReconcileReport — результат одного запуска сверки.
type ReconcileReport struct {
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
	BlobsChecked   int              `json:"blobs_checked"`
	RecordsChecked int              `json:"records_checked"`
	Issues         []ReconcileIssue `json:"issues"`
	Summary        ReconcileSummary `json:"summary"`
}

// ReconcileOptions — параметры сверки.
type ReconcileOptions struct {
	// Interval — период фонового запуска
	Interval time.Duration
	// OrphanGrace — минимальный возраст blob, чтобы считать его orphan
	OrphanGrace time.Duration
	// PruneOrphans — удалять orphan blob
	PruneOrphans bool
}

// ReconcileService — сервис фоновой сверки хранилища.
type ReconcileService struct {
	store  *blobstore.Store
	repo   repository.FileRepository
	opts   ReconcileOptions
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	store *blobstore.Store,
	repo repository.FileRepository,
	opts ReconcileOptions,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		store:  store,
		repo:   repo,
		opts:   opts,
		logger: logger.With(slog.String("component", "reconcile")),
		now:    time.Now,
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(rsCtx)

	rs.logger.Info("Сверка запущена",
		slog.String("interval", rs.opts.Interval.String()),
		slog.String("orphan_grace", rs.opts.OrphanGrace.String()),
		slog.Bool("prune_orphans", rs.opts.PruneOrphans),
	)
}

// Stop останавливает фоновую сверку и дожидается завершения горутины.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
		<-rs.done
	}
	rs.logger.Info("Сверка остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rs.RunOnce(ctx); err != nil && !errors.Is(err, ErrReconcileInProgress) {
				rs.logger.Error("Ошибка сверки", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Если сверка уже выполняется, возвращает ErrReconcileInProgress.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, ErrReconcileInProgress
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	startedAt := rs.now().UTC()
	rs.logger.Info("Сверка начата")

	report, err := rs.reconcile(ctx)
	if err != nil {
		return nil, err
	}

	report.StartedAt = startedAt
	report.CompletedAt = rs.now().UTC()
	duration := report.CompletedAt.Sub(startedAt)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())
	for _, issue := range report.Issues {
		reconcileIssuesTotal.WithLabelValues(string(issue.Type)).Inc()
	}
	reconcilePrunedTotal.Add(float64(report.Summary.PrunedBlobs))

	rs.logger.Info("Сверка завершена",
		slog.Int("blobs_checked", report.BlobsChecked),
		slog.Int("records_checked", report.RecordsChecked),
		slog.Int("orphan_blobs", report.Summary.OrphanBlobs),
		slog.Int("dangling_records", report.Summary.DanglingRecords),
		slog.Int("pruned_blobs", report.Summary.PrunedBlobs),
		slog.Duration("duration", duration),
	)

	return report, nil
}

// reconcile сравнивает индекс с директорией.
// Индекс читается до директории: blob, зафиксированный между чтениями,
// будет виден как молодой orphan и отсечётся grace-периодом.
func (rs *ReconcileService) reconcile(ctx context.Context) (*ReconcileReport, error) {
	records, err := rs.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("чтение индекса: %w", err)
	}

	blobs, err := rs.store.List()
	if err != nil {
		return nil, fmt.Errorf("чтение директории blob: %w", err)
	}

	report := &ReconcileReport{
		BlobsChecked:   len(blobs),
		RecordsChecked: len(records),
		Issues:         make([]ReconcileIssue, 0),
	}

	onDisk := make(map[string]bool, len(blobs))
	for _, b := range blobs {
		onDisk[b.StoredName] = true
	}
	indexed := make(map[string]bool, len(records))
	for _, r := range records {
		indexed[r.StoredName] = true
	}

	// 1. Записи без blob
	for _, r := range records {
		if onDisk[r.StoredName] {
			continue
		}
		// Запись могла быть удалена вместе с blob после чтения индекса
		if _, err := rs.repo.FindByID(ctx, r.ID); errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if rs.store.Exists(r.StoredName) {
			continue
		}
		id := r.ID
		report.Issues = append(report.Issues, ReconcileIssue{
			Type:        IssueDanglingRecord,
			StoredName:  r.StoredName,
			FileID:      &id,
			Description: "Запись в индексе без содержимого на диске",
		})
		report.Summary.DanglingRecords++
	}

	// 2. Blob без записи
	cutoff := rs.now().Add(-rs.opts.OrphanGrace)
	candidates := make([]blobstore.BlobInfo, 0)
	for _, b := range blobs {
		if indexed[b.StoredName] || b.ModTime.After(cutoff) {
			continue
		}
		candidates = append(candidates, b)
	}
	if len(candidates) > 0 {
		if err := rs.checkOrphans(ctx, candidates, report); err != nil {
			return nil, err
		}
	}

	report.Summary.Ok = len(records) - report.Summary.DanglingRecords
	return report, nil
}

// checkOrphans повторно сверяет кандидатов с индексом при остановленных
// фиксациях. Blob, запись о котором появилась после первого чтения
// индекса, не считается orphan и не удаляется.
func (rs *ReconcileService) checkOrphans(ctx context.Context, candidates []blobstore.BlobInfo, report *ReconcileReport) error {
	resume := rs.store.PauseCommits()
	defer resume()

	records, err := rs.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("повторное чтение индекса: %w", err)
	}
	indexed := make(map[string]bool, len(records))
	for _, r := range records {
		indexed[r.StoredName] = true
	}

	for _, b := range candidates {
		if indexed[b.StoredName] || !rs.store.Exists(b.StoredName) {
			continue
		}
		issue := ReconcileIssue{
			Type:        IssueOrphanBlob,
			StoredName:  b.StoredName,
			Description: "Содержимое на диске без записи в индексе",
		}
		if rs.opts.PruneOrphans {
			if err := rs.store.Delete(b.StoredName); err != nil {
				rs.logger.Warn("Не удалось удалить orphan blob",
					slog.String("stored_name", b.StoredName),
					slog.String("error", err.Error()),
				)
			} else {
				issue.Pruned = true
				report.Summary.PrunedBlobs++
				rs.logger.Info("Orphan blob удалён", slog.String("stored_name", b.StoredName))
			}
		}
		report.Issues = append(report.Issues, issue)
		report.Summary.OrphanBlobs++
	}
	return nil
}
