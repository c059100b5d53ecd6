package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

// submitRequest は POST /generate のリクエストボディです。
type submitRequest struct {
	Document   string            `json:"document"`
	Bucket     string            `json:"bucket"`
	StyleID    string            `json:"style_id"`
	Resolution domain.Resolution `json:"resolution"`
	SkipVideo  bool              `json:"skip_video"`
	// RunID を指定すると、互換性のある過去の実行を再開できます。
	RunID string `json:"run_id"`
}

// submitResponse は受付完了時のレスポンスです。
type submitResponse struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

// HandleSubmit は生成リクエストを受け付け、タスクキューに投入します。
// 生成自体は非同期で行われ、クライアントは実行IDで進捗を参照します。
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.WarnContext(r.Context(), "リクエストボディの解析に失敗しました", "error", err)
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}

	if req.Document == "" {
		writeError(w, http.StatusBadRequest, "ドキュメント（document）は必須項目です")
		return
	}
	switch req.Resolution {
	case "", domain.Resolution2K, domain.Resolution4K:
	default:
		writeError(w, http.StatusBadRequest, "解像度（resolution）は 2K または 4K を指定してください")
		return
	}

	runID := req.RunID
	if runID == "" {
		// 同一ドキュメントの同時投入でも衝突しないよう、乱数シードで実行IDを払い出します。
		runID = output.NewRunID(uuid.NewString())
	} else if !validRunID.MatchString(runID) {
		writeError(w, http.StatusBadRequest, "不正な実行ID形式です")
		return
	}

	payload := domain.GenerateTaskPayload{
		RunID:      runID,
		Document:   req.Document,
		Bucket:     req.Bucket,
		StyleID:    req.StyleID,
		Resolution: req.Resolution,
		SkipVideo:  req.SkipVideo,
	}

	if err := h.tasks.EnqueueGenerateTask(r.Context(), payload); err != nil {
		slog.ErrorContext(r.Context(), "タスクのエンキューに失敗しました", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "タスクのスケジュールに失敗しました。管理者にお問い合わせください。")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		RunID:     runID,
		StatusURL: "/runs/" + runID,
	})
}
