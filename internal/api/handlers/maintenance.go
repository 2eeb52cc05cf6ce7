// maintenance.go — обработчик POST /maintenance/reconcile.
// Делегирует сверку в ReconcileService.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/fileupload/internal/api/errors"
	"github.com/bigkaa/goartstore/fileupload/internal/service"
)

// ReconcileRunner — интерфейс для запуска сверки.
// Позволяет тестировать handler без полного ReconcileService.
type ReconcileRunner interface {
	// RunOnce выполняет один цикл сверки.
	// Возвращает service.ErrReconcileInProgress, если сверка уже идёт.
	RunOnce(ctx context.Context) (*service.ReconcileReport, error)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
	logger     *slog.Logger
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(reconciler ReconcileRunner, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		reconciler: reconciler,
		logger:     logger.With(slog.String("component", "maintenance_handler")),
	}
}

// Reconcile запускает синхронный цикл сверки и возвращает отчёт.
// Если сверка уже выполняется — 409 RECONCILE_IN_PROGRESS.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrReconcileInProgress) {
			apierrors.ReconcileInProgress(w, "Сверка уже выполняется")
			return
		}
		h.logger.Error("Ошибка сверки", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка сверки")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
