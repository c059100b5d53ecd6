package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

// runStatusResponse は GET /runs/{runID} のレスポンスです。
// マニフェストの現在状態をそのまま反映します。
type runStatusResponse struct {
	RunID             string                 `json:"run_id"`
	Resolution        domain.Resolution      `json:"resolution"`
	StyleID           string                 `json:"style_id"`
	Slides            []domain.ManifestEntry `json:"slides"`
	Segments          []domain.ManifestEntry `json:"segments"`
	FailedSlides      []int                  `json:"failed_slides,omitempty"`
	FailedTransitions []string               `json:"failed_transitions,omitempty"`
	ComposedVideo     string                 `json:"composed_video,omitempty"`
}

// RunStatus は実行中・完了済みの実行の進捗をマニフェストから返します。
func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if !validRunID.MatchString(runID) {
		writeError(w, http.StatusBadRequest, "不正な実行ID形式です")
		return
	}

	manifestPath := filepath.Join(h.cfg.RunDir(runID), output.ManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "指定された実行が見つかりません")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "マニフェストの読み込みに失敗しました", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "実行状態の取得に失敗しました")
		return
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		slog.ErrorContext(r.Context(), "マニフェストの解析に失敗しました", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "実行状態の取得に失敗しました")
		return
	}

	resp := runStatusResponse{
		RunID:             runID,
		Resolution:        manifest.Resolution,
		StyleID:           manifest.StyleID,
		Slides:            manifest.Slides,
		Segments:          manifest.Segments,
		FailedSlides:      manifest.FailedSlideNumbers(),
		FailedTransitions: manifest.FailedSegmentKeys(),
	}

	composed := filepath.Join(h.cfg.RunDir(runID), output.ComposedVideoFileName)
	if info, err := os.Stat(composed); err == nil && !info.IsDir() {
		resp.ComposedVideo = "/outputs/" + runID + "/" + output.ComposedVideoFileName
	}

	writeJSON(w, http.StatusOK, resp)
}
