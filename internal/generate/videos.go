package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

// videoJob は動画セグメント1本分の生成ジョブです。
type videoJob struct {
	key       string
	startPath string
	endPath   string // 空の場合はループ動画（プレビュー）
	prompt    string
	duration  float64
	hash      string
}

// VideoStage はトランジション・プレビュー動画生成ステージの実行器です。
// プロバイダ側の同時実行制限に合わせた小さなワーカープールで実行します。
type VideoStage struct {
	gen            VideoGenerator
	out            *output.Manager
	negativePrompt string
	concurrency    int
	maxAttempts    int
	pollInterval   time.Duration
	jobTimeout     time.Duration
}

func NewVideoStage(gen VideoGenerator, out *output.Manager, negativePrompt string, concurrency, maxAttempts int, pollInterval, jobTimeout time.Duration) *VideoStage {
	return &VideoStage{
		gen:            gen,
		out:            out,
		negativePrompt: negativePrompt,
		concurrency:    concurrency,
		maxAttempts:    maxAttempts,
		pollInterval:   pollInterval,
		jobTimeout:     jobTimeout,
	}
}

// Run はトランジションプロンプト一式から動画セグメントを生成します。
// 元スライド画像が failed のセグメントは生成せず failed として記録します。
func (s *VideoStage) Run(ctx context.Context, tp domain.TransitionPrompts, transitionDuration time.Duration) error {
	jobs, err := s.buildJobs(tp, transitionDuration)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return s.runJob(gctx, job)
		})
	}
	return g.Wait()
}

// buildJobs はプロンプト一式をジョブ一覧に変換します。
// 元画像が揃っていないセグメントはこの時点で failed として確定させます。
func (s *VideoStage) buildJobs(tp domain.TransitionPrompts, transitionDuration time.Duration) ([]videoJob, error) {
	manifest := s.out.Manifest()
	var jobs []videoJob

	slideHash := func(number int) (string, string, bool) {
		entry, ok := manifest.FindSlide(number)
		if !ok || entry.Status != domain.JobSucceeded {
			return "", "", false
		}
		return entry.AssetPath, entry.ContentHash, true
	}

	if tp.Preview != nil {
		path, hash, ok := slideHash(1)
		if ok {
			jobs = append(jobs, videoJob{
				key:       domain.PreviewKey,
				startPath: path,
				prompt:    tp.Preview.Prompt,
				duration:  transitionDuration.Seconds(),
				hash:      VideoContentHash(hash, "", tp.Preview.Prompt, transitionDuration.Seconds()),
			})
		} else if err := s.commitMissingSource(domain.PreviewKey, 1); err != nil {
			return nil, err
		}
	}

	for _, t := range tp.Transitions {
		key := domain.TransitionKey(t.FromSlide, t.ToSlide)
		fromPath, fromHash, fromOK := slideHash(t.FromSlide)
		toPath, toHash, toOK := slideHash(t.ToSlide)
		if !fromOK || !toOK {
			missing := t.FromSlide
			if fromOK {
				missing = t.ToSlide
			}
			if err := s.commitMissingSource(key, missing); err != nil {
				return nil, err
			}
			continue
		}
		duration := t.DurationSeconds
		if duration <= 0 {
			duration = transitionDuration.Seconds()
		}
		jobs = append(jobs, videoJob{
			key:       key,
			startPath: fromPath,
			endPath:   toPath,
			prompt:    t.Prompt,
			duration:  duration,
			hash:      VideoContentHash(fromHash, toHash, t.Prompt, duration),
		})
	}
	return jobs, nil
}

func (s *VideoStage) commitMissingSource(key string, missingSlide int) error {
	err := &domain.IncompleteInputError{MissingSlide: missingSlide}
	slog.Warn("Skipping video segment, source slide unavailable", "key", key, "missing_slide", missingSlide)
	return s.out.CommitSegment(domain.ManifestEntry{
		Key:    key,
		Status: domain.JobFailed,
		Error:  err.Error(),
	})
}

// runJob は1本分の動画生成を行います。再試行の分類は画像ステージと
// 同じですが、動画生成は高コストなため試行上限は低めに設定されます。
func (s *VideoStage) runJob(ctx context.Context, job videoJob) error {
	assetPath := s.out.SegmentVideoPath(job.key)

	manifest := s.out.Manifest()
	if prev, ok := manifest.FindSegment(job.key); ok {
		if prev.Status == domain.JobSucceeded && prev.ContentHash == job.hash && fileExists(prev.AssetPath) {
			slog.Info("Skipping video segment, already generated", "key", job.key)
			return nil
		}
	}

	if err := s.out.CommitSegment(domain.ManifestEntry{
		Key: job.key, AssetPath: assetPath, ContentHash: job.hash, Status: domain.JobRunning,
	}); err != nil {
		return err
	}

	retries := 0
	var videoData []byte
	op := func() error {
		data, err := s.generateOnce(ctx, job)
		if err != nil {
			if domain.IsTransientProvider(err) {
				retries++
				slog.Warn("Video segment generation failed, will retry", "key", job.key, "retries", retries, "error", err)
				commitErr := s.out.CommitSegment(domain.ManifestEntry{
					Key: job.key, AssetPath: assetPath, ContentHash: job.hash,
					Status: domain.JobRetrying, Retries: retries, Error: err.Error(),
				})
				if commitErr != nil {
					return backoff.Permanent(commitErr)
				}
				return err
			}
			return backoff.Permanent(err)
		}
		videoData = data
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxAttempts-1))
	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if commitErr := s.out.CommitSegment(domain.ManifestEntry{
			Key: job.key, AssetPath: assetPath, ContentHash: job.hash,
			Status: domain.JobFailed, Retries: retries, Error: err.Error(),
		}); commitErr != nil {
			return commitErr
		}
		if domain.IsFatalProvider(err) {
			slog.Error("Fatal provider error, aborting video stage", "key", job.key, "error", err)
			return err
		}
		slog.Error("Video segment generation exhausted retries", "key", job.key, "retries", retries, "error", err)
		return nil
	}

	if err := s.out.WriteAsset(assetPath, videoData); err != nil {
		return fmt.Errorf("動画セグメントの保存に失敗しました: %w", err)
	}
	return s.out.CommitSegment(domain.ManifestEntry{
		Key: job.key, AssetPath: assetPath, ContentHash: job.hash,
		Status: domain.JobSucceeded, Retries: retries,
	})
}

// generateOnce は投入・ポーリング・ダウンロードの1サイクルを実行します。
// ポーリングが jobTimeout を超えた場合は transient エラーとして扱います。
func (s *VideoStage) generateOnce(ctx context.Context, job videoJob) ([]byte, error) {
	startImage, err := os.ReadFile(job.startPath)
	if err != nil {
		return nil, fmt.Errorf("開始スライド画像の読み込みに失敗しました: %w", err)
	}
	var endImage []byte
	if job.endPath != "" {
		endImage, err = os.ReadFile(job.endPath)
		if err != nil {
			return nil, fmt.Errorf("終了スライド画像の読み込みに失敗しました: %w", err)
		}
	}

	taskID, err := s.gen.Submit(ctx, VideoRequest{
		StartImage:      startImage,
		EndImage:        endImage,
		Prompt:          job.prompt,
		NegativePrompt:  s.negativePrompt,
		DurationSeconds: job.duration,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Video generation task submitted", "key", job.key, "task_id", taskID)

	pollCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, domain.NewTransientError("video", fmt.Errorf("task %s did not complete within %s", taskID, s.jobTimeout))
		case <-ticker.C:
		}

		status, err := s.gen.Status(pollCtx, taskID)
		if err != nil {
			return nil, err
		}
		switch status.State {
		case VideoTaskSucceeded:
			return s.gen.Download(ctx, status.VideoURL)
		case VideoTaskFailed:
			return nil, domain.NewTransientError("video", fmt.Errorf("task %s failed: %s", taskID, status.Message))
		case VideoTaskSubmitted, VideoTaskProcessing:
			// 継続してポーリング
		default:
			return nil, domain.NewTransientError("video", fmt.Errorf("task %s reported unknown state %q", taskID, status.State))
		}
	}
}
