package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/pipeline"
)

// WorkerHandler は Cloud Tasks から送られる生成タスクを処理します。
type WorkerHandler struct {
	pipeline pipeline.Pipeline
}

func NewWorkerHandler(p pipeline.Pipeline) *WorkerHandler {
	return &WorkerHandler{pipeline: p}
}

// GenerateTask はタスクペイロードを受け取り、パイプラインを同期実行します。
// 致命的エラーで失敗した実行は 500 を返し、Cloud Tasks の再試行に任せます。
// マニフェストによる再開機構があるため、再試行は完了済みジョブをスキップします。
func (h *WorkerHandler) GenerateTask(w http.ResponseWriter, r *http.Request) {
	var payload domain.GenerateTaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.WarnContext(r.Context(), "タスクペイロードの解析に失敗しました", "error", err)
		// 解析不能なペイロードは再試行しても成功しないため 200 で握りつぶします。
		writeError(w, http.StatusOK, "invalid payload, dropped")
		return
	}
	if payload.Document == "" {
		writeError(w, http.StatusOK, "empty document, dropped")
		return
	}

	result := h.pipeline.Execute(r.Context(), payload)
	if result.Status == domain.RunFailed {
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
