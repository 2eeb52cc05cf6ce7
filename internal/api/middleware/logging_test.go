package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// logEntry — поля записи RequestLogger, которые проверяют тесты.
type logEntry struct {
	Level  string `json:"level"`
	Route  string `json:"route"`
	Status int    `json:"status"`
	FileID string `json:"file_id"`
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		target    string
		wantLevel string
		wantRoute string
		wantID    string
		wantCode  int
	}{
		{name: "скачивание", method: http.MethodGet, target: "/download/7", wantLevel: "INFO", wantRoute: "/download/{id}", wantID: "7", wantCode: http.StatusOK},
		{name: "не найден", method: http.MethodDelete, target: "/file/9", wantLevel: "WARN", wantRoute: "/file/{id}", wantID: "9", wantCode: http.StatusNotFound},
		{name: "ошибка сервера", method: http.MethodGet, target: "/files", wantLevel: "ERROR", wantRoute: "/files", wantCode: http.StatusInternalServerError},
		{name: "health", method: http.MethodGet, target: "/health/live", wantLevel: "DEBUG", wantRoute: "/health/live", wantCode: http.StatusOK},
		{name: "неизвестный маршрут", method: http.MethodGet, target: "/nope", wantLevel: "WARN", wantRoute: "unmatched", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			r := chi.NewRouter()
			r.Use(RequestLogger(logger))
			r.Get("/download/{id}", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("data"))
			})
			r.Delete("/file/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})
			r.Get("/files", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})
			r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("статус = %d, ожидался %d", rec.Code, tt.wantCode)
			}

			var entry logEntry
			if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
				t.Fatalf("запись лога не JSON: %v (%q)", err, buf.String())
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %q, ожидался %q", entry.Level, tt.wantLevel)
			}
			if entry.Route != tt.wantRoute {
				t.Errorf("route = %q, ожидался %q", entry.Route, tt.wantRoute)
			}
			if entry.Status != tt.wantCode {
				t.Errorf("status = %d, ожидался %d", entry.Status, tt.wantCode)
			}
			if entry.FileID != tt.wantID {
				t.Errorf("file_id = %q, ожидался %q", entry.FileID, tt.wantID)
			}
		})
	}
}
