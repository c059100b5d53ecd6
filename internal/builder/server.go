package builder

import (
	"net/http"

	"ap-ppt-video/internal/server/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewServerHandler は HTTP ルーティングと各ハンドラーの依存関係をすべて組み立てるのだ。
func NewServerHandler(appCtx *AppContext) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	h := handlers.NewHandler(appCtx.Config, appCtx.TaskAdapter)

	// --- 受付ルート ---
	r.Get("/", h.Usage)
	r.Post("/generate", h.HandleSubmit)
	r.Get("/healthz", h.Health)

	// --- 実行状態・成果物の参照ルート ---
	r.Get("/runs/{runID}", h.RunStatus)
	r.Get("/outputs/{runID}/*", h.ServeOutput)

	// --- Cloud Tasks 専用ルート (Worker 用) ---
	r.Post("/tasks/generate", handlers.NewWorkerHandler(appCtx.Pipeline).GenerateTask)

	return r
}
