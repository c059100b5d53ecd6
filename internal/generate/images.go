package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
	"ap-ppt-video/internal/style"
)

// ImageStage はスライド画像生成ステージの実行器です。
// ワーカープールで並列生成し、ジョブ単位の失敗は記録して続行、
// 致命的エラーのみステージ全体を中断します。
type ImageStage struct {
	gen         ImageGenerator
	out         *output.Manager
	concurrency int
	maxAttempts int
}

func NewImageStage(gen ImageGenerator, out *output.Manager, concurrency, maxAttempts int) *ImageStage {
	return &ImageStage{gen: gen, out: out, concurrency: concurrency, maxAttempts: maxAttempts}
}

// Run は計画中の全スライドに対して画像生成ジョブを実行します。
// プロンプトの解決と prompts.json の書き出しもこのステージが担います。
func (s *ImageStage) Run(ctx context.Context, plan domain.SlidePlan, def domain.StyleDefinition, resolution domain.Resolution) error {
	prompts := make(map[int]string, len(plan.Slides))
	records := make([]output.PromptRecord, 0, len(plan.Slides))
	for _, slide := range plan.Slides {
		prompt, err := style.RenderPrompt(def, slide, plan, resolution)
		if err != nil {
			return err
		}
		prompts[slide.Number] = prompt
		records = append(records, output.PromptRecord{
			SlideNumber: slide.Number,
			PageType:    slide.PageType,
			Prompt:      prompt,
		})
	}
	if err := s.out.SavePrompts(records); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, slide := range plan.Slides {
		slide := slide
		g.Go(func() error {
			return s.runJob(gctx, slide, def, resolution, prompts[slide.Number])
		})
	}
	return g.Wait()
}

// runJob は1枚分の画像生成を行います。
// transient エラーは指数バックオフで再試行し、試行上限に達したら
// failed として記録してステージは続行させます（nil を返す）。
// fatal エラーのみ呼び出し元へ返し、兄弟ジョブをキャンセルします。
func (s *ImageStage) runJob(ctx context.Context, slide domain.Slide, def domain.StyleDefinition, resolution domain.Resolution, prompt string) error {
	key := domain.SlideKey(slide.Number)
	assetPath := s.out.SlideImagePath(slide.Number)
	hash := ImageContentHash(def.ID, slide.Content, resolution, prompt)

	manifest := s.out.Manifest()
	if prev, ok := manifest.FindSlide(slide.Number); ok {
		if prev.Status == domain.JobSucceeded && prev.ContentHash == hash && fileExists(prev.AssetPath) {
			slog.Info("Skipping slide image, already generated", "key", key)
			return nil
		}
	}

	if err := s.out.CommitSlide(domain.ManifestEntry{
		Key: key, AssetPath: assetPath, ContentHash: hash, Status: domain.JobRunning,
	}); err != nil {
		return err
	}

	retries := 0
	var imageData []byte
	op := func() error {
		data, err := s.gen.GenerateImage(ctx, ImageRequest{
			Prompt:         prompt,
			NegativePrompt: def.NegativePrompt,
			AspectRatio:    def.AspectRatio,
			Resolution:     resolution,
		})
		if err != nil {
			if domain.IsFatalProvider(err) {
				return backoff.Permanent(err)
			}
			retries++
			slog.Warn("Slide image generation failed, will retry", "key", key, "retries", retries, "error", err)
			commitErr := s.out.CommitSlide(domain.ManifestEntry{
				Key: key, AssetPath: assetPath, ContentHash: hash,
				Status: domain.JobRetrying, Retries: retries, Error: err.Error(),
			})
			if commitErr != nil {
				return backoff.Permanent(commitErr)
			}
			return err
		}
		imageData = data
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxAttempts-1))
	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if commitErr := s.out.CommitSlide(domain.ManifestEntry{
			Key: key, AssetPath: assetPath, ContentHash: hash,
			Status: domain.JobFailed, Retries: retries, Error: err.Error(),
		}); commitErr != nil {
			return commitErr
		}
		if domain.IsFatalProvider(err) {
			slog.Error("Fatal provider error, aborting image stage", "key", key, "error", err)
			return err
		}
		slog.Error("Slide image generation exhausted retries", "key", key, "retries", retries, "error", err)
		return nil
	}

	if err := s.out.WriteAsset(assetPath, imageData); err != nil {
		return fmt.Errorf("スライド画像の保存に失敗しました: %w", err)
	}
	return s.out.CommitSlide(domain.ManifestEntry{
		Key: key, AssetPath: assetPath, ContentHash: hash,
		Status: domain.JobSucceeded, Retries: retries,
	})
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
