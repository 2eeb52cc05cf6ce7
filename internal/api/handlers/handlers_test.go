package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/fileupload/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodeError читает тело ответа ошибки и возвращает code.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("тело ответа не JSON: %v", err)
	}
	return body.Error.Code
}

func TestParseFileID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantID int64
		wantOK bool
	}{
		{name: "корректный", raw: "42", wantID: 42, wantOK: true},
		{name: "большой", raw: "9007199254740993", wantID: 9007199254740993, wantOK: true},
		{name: "буквы", raw: "abc", wantOK: false},
		{name: "ноль", raw: "0", wantOK: false},
		{name: "отрицательный", raw: "-1", wantOK: false},
		{name: "дробный", raw: "1.5", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID int64
			var gotOK bool

			r := chi.NewRouter()
			r.Get("/download/{id}", func(w http.ResponseWriter, r *http.Request) {
				gotID, gotOK = parseFileID(w, r)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/"+tt.raw, nil))

			if gotOK != tt.wantOK {
				t.Fatalf("ok = %v, ожидалось %v", gotOK, tt.wantOK)
			}
			if tt.wantOK && gotID != tt.wantID {
				t.Errorf("id = %d, ожидался %d", gotID, tt.wantID)
			}
			if !tt.wantOK {
				if rec.Code != http.StatusNotFound {
					t.Errorf("статус = %d, ожидался 404", rec.Code)
				}
				if code := decodeError(t, rec); code != "NOT_FOUND" {
					t.Errorf("code = %q, ожидался NOT_FOUND", code)
				}
			}
		})
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []string{
		"report.pdf",
		"my file (1).txt",
		"отчёт.pdf",
		`quote".txt`,
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			header := contentDisposition(name)
			disp, params, err := mime.ParseMediaType(header)
			if err != nil {
				t.Fatalf("ParseMediaType(%q) ошибка: %v", header, err)
			}
			if disp != "attachment" {
				t.Errorf("disposition = %q, ожидался attachment", disp)
			}
			if params["filename"] != name {
				t.Errorf("filename = %q, ожидался %q", params["filename"], name)
			}
		})
	}
}

// fakeReconciler — заглушка ReconcileRunner.
type fakeReconciler struct {
	report *service.ReconcileReport
	err    error
}

func (f *fakeReconciler) RunOnce(context.Context) (*service.ReconcileReport, error) {
	return f.report, f.err
}

func TestMaintenanceHandler_Reconcile(t *testing.T) {
	tests := []struct {
		name       string
		runner     *fakeReconciler
		wantStatus int
		wantCode   string
	}{
		{
			name: "успех",
			runner: &fakeReconciler{report: &service.ReconcileReport{
				Issues:  []service.ReconcileIssue{},
				Summary: service.ReconcileSummary{Ok: 3},
			}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "уже выполняется",
			runner:     &fakeReconciler{err: service.ErrReconcileInProgress},
			wantStatus: http.StatusConflict,
			wantCode:   "RECONCILE_IN_PROGRESS",
		},
		{
			name:       "ошибка индекса",
			runner:     &fakeReconciler{err: errors.New("нет соединения")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMaintenanceHandler(tt.runner, testLogger())
			rec := httptest.NewRecorder()
			h.Reconcile(rec, httptest.NewRequest(http.MethodPost, "/maintenance/reconcile", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if code := decodeError(t, rec); code != tt.wantCode {
					t.Errorf("code = %q, ожидался %q", code, tt.wantCode)
				}
				return
			}

			var report service.ReconcileReport
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("тело ответа не JSON: %v", err)
			}
			if report.Summary.Ok != 3 {
				t.Errorf("summary.ok = %d, ожидалось 3", report.Summary.Ok)
			}
		})
	}
}

// fakeChecker — заглушка ReadinessChecker.
type fakeChecker struct{ status string }

func (f fakeChecker) CheckReady() (string, string) { return f.status, "" }

// fakeStorage — заглушка WritableChecker.
type fakeStorage struct{ err error }

func (f fakeStorage) CheckWritable() error { return f.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		pg         ReadinessChecker
		storage    WritableChecker
		wantStatus int
	}{
		{name: "всё доступно", pg: fakeChecker{"ok"}, storage: fakeStorage{}, wantStatus: http.StatusOK},
		{name: "PostgreSQL недоступен", pg: fakeChecker{"fail"}, storage: fakeStorage{}, wantStatus: http.StatusServiceUnavailable},
		{name: "директория недоступна", pg: fakeChecker{"ok"}, storage: fakeStorage{errors.New("read-only")}, wantStatus: http.StatusServiceUnavailable},
		{name: "не инициализирован", wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.storage)

			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("ready статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}

			// Liveness не зависит от зависимостей
			rec = httptest.NewRecorder()
			h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("live статус = %d, ожидался 200", rec.Code)
			}
		})
	}
}
