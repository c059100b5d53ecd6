package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"ap-ppt-video/internal/adapters"
	"ap-ppt-video/internal/config"
)

// validRunID は実行IDとして受理するパターンです。
// パス結合に使用するため、区切り文字や相対参照を一切含めません。
var validRunID = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Handler は受付・参照系エンドポイントの依存関係を保持します。
type Handler struct {
	cfg   *config.Config
	tasks adapters.TaskAdapter
}

func NewHandler(cfg *config.Config, tasks adapters.TaskAdapter) *Handler {
	return &Handler{cfg: cfg, tasks: tasks}
}

// Health はヘルスチェック用のエンドポイントです。
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Usage はルートパスへのアクセスに対して簡単な利用案内を返します。
func (h *Handler) Usage(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "ap-ppt-video",
		"usage": map[string]string{
			"POST /generate":       "document, bucket, style_id, resolution, skip_video を受け付け、生成タスクを投入します",
			"GET /runs/{runID}":    "実行の進捗と結果を返します",
			"GET /outputs/{runID}": "生成された成果物を配信します",
			"GET /healthz":         "ヘルスチェック",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
