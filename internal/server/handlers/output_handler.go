package handlers

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ServeOutput は実行ディレクトリ配下の成果物（画像・動画・JSON）を配信します。
// 実行ディレクトリの外を参照できないよう、正規化後のパスを必ず検証します。
func (h *Handler) ServeOutput(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if !validRunID.MatchString(runID) {
		writeError(w, http.StatusBadRequest, "不正な実行ID形式です")
		return
	}

	rel := chi.URLParam(r, "*")
	runDir, err := filepath.Abs(h.cfg.RunDir(runID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "成果物パスの解決に失敗しました")
		return
	}

	target := filepath.Join(runDir, filepath.FromSlash(rel))
	cleaned, err := filepath.Abs(target)
	if err != nil || !strings.HasPrefix(cleaned, runDir+string(filepath.Separator)) {
		slog.WarnContext(r.Context(), "成果物のリクエストパスが不正です", "run_id", runID, "path", rel)
		writeError(w, http.StatusBadRequest, "不正な成果物パスです")
		return
	}

	http.ServeFile(w, r, cleaned)
}
