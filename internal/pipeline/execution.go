package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ap-ppt-video/internal/compose"
	"ap-ppt-video/internal/config"
	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/generate"
	"ap-ppt-video/internal/output"
	"ap-ppt-video/internal/transition"
)

// videoExecution は一回のリクエスト実行に関する状態（開始時刻や実行IDなど）を保持します。
type videoExecution struct {
	pipeline  *VideoPipeline
	payload   domain.GenerateTaskPayload
	startTime time.Time

	runID string
	title string
}

// run は各生成フェーズを順番に実行し、結果を通知します。
// 致命的エラーの通知は defer 文で一括管理します。
func (e *videoExecution) run(ctx context.Context) domain.RunResult {
	var fatalErr error
	defer func() {
		if fatalErr != nil {
			e.notifyError(ctx, fatalErr)
		}
	}()

	p := e.pipeline
	cfg := p.cfg

	slog.Info("Pipeline execution started",
		"run_id", e.payload.RunID,
		"bucket", e.payload.Bucket,
		"resolution", e.payload.Resolution,
		"skip_video", e.payload.SkipVideo,
	)

	// --- Phase 0: スタイル解決と計画構築 ---
	styleDef, err := p.styles.Resolve(e.styleID())
	if err != nil {
		fatalErr = err
		return e.failedResult(fatalErr)
	}

	slidePlan, err := p.plans.Build(e.payload.Document, e.bucket())
	if err != nil {
		fatalErr = err
		return e.failedResult(fatalErr)
	}
	e.title = slidePlan.Title

	hash, err := planHash(slidePlan, e.bucket())
	if err != nil {
		fatalErr = err
		return e.failedResult(fatalErr)
	}

	e.runID = e.payload.RunID
	if e.runID == "" {
		e.runID = output.NewRunID(slidePlan.Title)
	}

	out, resumed, err := output.Begin(cfg.OutputBaseDir, e.runID, hash, styleDef.ID, e.resolution())
	if err != nil {
		fatalErr = err
		return e.failedResult(fatalErr)
	}
	if err := out.SavePlan(slidePlan); err != nil {
		fatalErr = err
		return e.failedResult(fatalErr)
	}
	slog.Info("Run initialized", "run_id", e.runID, "total_slides", slidePlan.TotalSlides(), "resumed", resumed)

	// --- Phase 1: スライド画像生成 ---
	imageStage := generate.NewImageStage(p.imageGen, out, cfg.ImageConcurrency, cfg.ImageMaxAttempts)
	if err := imageStage.Run(ctx, slidePlan, styleDef, e.resolution()); err != nil {
		fatalErr = fmt.Errorf("image stage failed: %w", err)
		return out.Finalize("", fatalErr)
	}

	if e.payload.SkipVideo {
		return e.finish(ctx, out, "")
	}

	// --- Phase 2: トランジション解析 ---
	analyzer := transition.NewAnalyzer(p.describer, out, cfg.TransitionDuration)
	prompts, err := analyzer.Build(ctx, slidePlan)
	if err != nil {
		fatalErr = fmt.Errorf("transition analysis failed: %w", err)
		return out.Finalize("", fatalErr)
	}

	// --- Phase 3: 動画セグメント生成 ---
	if p.videoGen == nil {
		fatalErr = &domain.ConfigError{Field: "KLING_ACCESS_KEY/KLING_SECRET_KEY", Reason: "video synthesis requires Kling API credentials"}
		return out.Finalize("", fatalErr)
	}
	videoStage := generate.NewVideoStage(p.videoGen, out, styleDef.NegativePrompt,
		cfg.VideoConcurrency, cfg.VideoMaxAttempts, cfg.VideoPollInterval, cfg.VideoJobTimeout)
	if err := videoStage.Run(ctx, prompts, cfg.TransitionDuration); err != nil {
		fatalErr = fmt.Errorf("video stage failed: %w", err)
		return out.Finalize("", fatalErr)
	}

	// --- Phase 4: 合成 ---
	composedVideo, err := e.runComposeStep(ctx, out, slidePlan)
	if err != nil {
		fatalErr = fmt.Errorf("composition failed: %w", err)
		return out.Finalize("", fatalErr)
	}

	return e.finish(ctx, out, composedVideo)
}

// runComposeStep は最終動画の合成を行います。
// セグメント欠落による合成不能は致命的エラーではなく部分成功として扱い、
// 欠落分の再実行に備えてディスク上の成果物を残します。
func (e *videoExecution) runComposeStep(ctx context.Context, out *output.Manager, slidePlan domain.SlidePlan) (string, error) {
	composeCtx, cancel := context.WithTimeout(ctx, config.DefaultComposeTimeout)
	defer cancel()

	composer := compose.NewComposer(e.pipeline.ffmpeg, out, compose.Options{
		Resolution:   e.pipeline.cfg.OutputResolution,
		FPS:          e.pipeline.cfg.OutputFPS,
		HoldDuration: e.pipeline.cfg.HoldDuration,
	})

	composedVideo, _, err := composer.Compose(composeCtx, slidePlan)
	if err != nil {
		var blocked *domain.CompositionBlockedError
		if errors.As(err, &blocked) {
			slog.Warn("Composition blocked by missing segments, keeping partial artifacts",
				"run_id", e.runID, "missing", blocked.Missing)
			return "", nil
		}
		return "", err
	}
	return composedVideo, nil
}

// finish は成果物の公開と成功通知を行い、最終結果を組み立てます。
// 通知や公開の失敗はパイプライン全体の成否には影響させません。
func (e *videoExecution) finish(ctx context.Context, out *output.Manager, composedVideo string) domain.RunResult {
	result := out.Finalize(composedVideo, nil)

	publicURL := ""
	if e.pipeline.publisher != nil {
		url, err := e.pipeline.publisher.PublishRun(ctx, out.RunDir(), e.runID)
		if err != nil {
			slog.ErrorContext(ctx, "Artifact publishing failed", "run_id", e.runID, "error", err)
		} else {
			publicURL = url
		}
	}

	if e.pipeline.notifier != nil {
		if err := e.pipeline.notifier.Notify(ctx, publicURL, result, e.buildNotification()); err != nil {
			slog.ErrorContext(ctx, "Notification failed", "run_id", e.runID, "error", err)
		}
	}

	slog.Info("Pipeline execution finished",
		"run_id", e.runID,
		"status", result.Status,
		"elapsed", time.Since(e.startTime).Round(time.Second).String(),
	)
	return result
}

func (e *videoExecution) notifyError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "Pipeline execution failed", "run_id", e.runID, "error", err)
	if e.pipeline.notifier == nil {
		return
	}
	if notifyErr := e.pipeline.notifier.NotifyError(ctx, err, e.buildNotification()); notifyErr != nil {
		slog.ErrorContext(ctx, "Error notification failed", "error", notifyErr)
	}
}

func (e *videoExecution) failedResult(err error) domain.RunResult {
	return domain.RunResult{
		RunID:  e.runID,
		Status: domain.RunFailed,
		Error:  err.Error(),
	}
}

func (e *videoExecution) buildNotification() domain.NotificationRequest {
	title := e.title
	if title == "" {
		title = domain.CategoryNotAvailable
	}
	category := "ppt-video"
	if e.payload.SkipVideo {
		category = "ppt-images"
	}
	return domain.NotificationRequest{
		OutputCategory: category,
		TargetTitle:    title,
		ExecutionMode:  fmt.Sprintf("%s / %s", e.bucket(), e.resolution()),
	}
}

// --- ペイロード既定値の解決 ---

func (e *videoExecution) bucket() string {
	if e.payload.Bucket != "" {
		return e.payload.Bucket
	}
	return e.pipeline.cfg.Bucket
}

func (e *videoExecution) styleID() string {
	if e.payload.StyleID != "" {
		return e.payload.StyleID
	}
	return e.pipeline.cfg.StyleID
}

func (e *videoExecution) resolution() domain.Resolution {
	if e.payload.Resolution != "" {
		return e.payload.Resolution
	}
	return e.pipeline.cfg.Resolution
}
