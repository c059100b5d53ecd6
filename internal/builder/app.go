package builder

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"ap-ppt-video/internal/adapters"
	"ap-ppt-video/internal/compose"
	"ap-ppt-video/internal/config"
	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/generate"
	"ap-ppt-video/internal/pipeline"
	"ap-ppt-video/internal/plan"
	"ap-ppt-video/internal/style"
	"ap-ppt-video/internal/transition"

	"github.com/shouni/go-http-kit/pkg/httpkit"
)

// AppContext はアプリケーションの依存関係を保持します。
// 各フィールドをインターフェースで定義することで、将来的なモック利用を容易にします。
type AppContext struct {
	Config        *config.Config
	Pipeline      pipeline.Pipeline
	TaskAdapter   adapters.TaskAdapter
	SlackNotifier adapters.SlackNotifier
	HTTPClient    httpkit.ClientInterface
	RemoteIO      *RemoteIO
}

// BuildAppContext は外部サービスとの接続を確立し、依存関係を組み立てます。
func BuildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	// 1. 基盤クライアントの初期化
	httpClient := httpkit.New(config.DefaultHTTPTimeout)

	// 2. 通知アダプターの初期化
	slack, err := adapters.NewSlackAdapter(httpClient, cfg.SlackWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Slack adapter: %w", err)
	}

	// 3. 生成プロバイダの初期化
	imageGen, err := adapters.NewGeminiImageAdapter(ctx, cfg.GeminiAPIKey, cfg.GeminiImageModel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini image adapter: %w", err)
	}

	var describer transition.ImageDiffDescriber
	if cfg.GeminiVisionModel != "" {
		d, err := adapters.NewGeminiDescribeAdapter(ctx, cfg.GeminiAPIKey, cfg.GeminiVisionModel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini vision adapter: %w", err)
		}
		describer = d
	}

	// Kling 資格情報が無い環境では動画ステージ無しで起動します。
	// 画像のみの実行 (skip_video) は引き続き可能です。
	var videoGen generate.VideoGenerator
	if err := config.ValidateVideoCredentials(cfg); err == nil {
		videoGen = adapters.NewKlingVideoAdapter(
			&http.Client{Timeout: config.DefaultHTTPTimeout},
			cfg.KlingAccessKey, cfg.KlingSecretKey, cfg.KlingModel, cfg.KlingMode,
		)
	} else {
		slog.Warn("Kling credentials not configured, video synthesis is unavailable")
	}

	// 4. 成果物公開 (GCS ミラー) の初期化
	rio, publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 5. パイプラインの組み立て
	videoPipeline := pipeline.NewVideoPipeline(pipeline.Dependencies{
		Config:    cfg,
		Plans:     plan.NewBuilder(),
		Styles:    style.NewResolver(cfg.StylesDir),
		ImageGen:  imageGen,
		Describer: describer,
		VideoGen:  videoGen,
		FFmpeg:    compose.NewFFmpegExecutor(cfg.FFmpegPath),
		Notifier:  slack,
		Publisher: publisher,
	})

	// 6. タスクアダプターの初期化
	taskAdapter, err := buildTaskAdapter(ctx, cfg, videoPipeline)
	if err != nil {
		return nil, err
	}

	return &AppContext{
		Config:        cfg,
		Pipeline:      videoPipeline,
		TaskAdapter:   taskAdapter,
		SlackNotifier: slack,
		HTTPClient:    httpClient,
		RemoteIO:      rio,
	}, nil
}

// buildTaskAdapter は Cloud Tasks またはプロセス内実行のタスクアダプターを構築します。
func buildTaskAdapter(ctx context.Context, cfg *config.Config, p pipeline.Pipeline) (adapters.TaskAdapter, error) {
	if cfg.ProjectID != "" {
		adapter, err := adapters.NewCloudTasksAdapter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cloud tasks adapter: %w", err)
		}
		return adapter, nil
	}

	slog.Info("GCP project not configured, using in-process task execution")
	return adapters.NewLocalTaskAdapter(func(ctx context.Context, payload domain.GenerateTaskPayload) {
		p.Execute(ctx, payload)
	}), nil
}

// Close はアプリケーションが保持する外部接続を解放します。
func (c *AppContext) Close() {
	if c.TaskAdapter != nil {
		if err := c.TaskAdapter.Close(); err != nil {
			slog.Error("Failed to close task adapter", "error", err)
		}
	}
	if c.RemoteIO != nil && c.RemoteIO.Factory != nil {
		if err := c.RemoteIO.Factory.Close(); err != nil {
			slog.Error("Failed to close remote IO factory", "error", err)
		}
	}
}
