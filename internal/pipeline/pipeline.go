package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ap-ppt-video/internal/adapters"
	"ap-ppt-video/internal/compose"
	"ap-ppt-video/internal/config"
	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/generate"
	"ap-ppt-video/internal/plan"
	"ap-ppt-video/internal/style"
	"ap-ppt-video/internal/transition"
)

// Pipeline はドキュメントからプレゼン動画を生成する一連の処理です。
type Pipeline interface {
	Execute(ctx context.Context, payload domain.GenerateTaskPayload) domain.RunResult
}

// VideoPipeline は Pipeline の標準実装です。
// 依存はすべて能力インターフェースとして受け取り、テストでは偽物に差し替えます。
type VideoPipeline struct {
	cfg       *config.Config
	plans     *plan.Builder
	styles    *style.Resolver
	imageGen  generate.ImageGenerator
	describer transition.ImageDiffDescriber // 未設定の場合は静的プロンプトのみ
	videoGen  generate.VideoGenerator       // 未設定の場合は動画ステージをスキップ
	ffmpeg    compose.Executor
	notifier  adapters.SlackNotifier
	publisher adapters.Publisher // 未設定の場合はローカル出力のみ
}

type Dependencies struct {
	Config    *config.Config
	Plans     *plan.Builder
	Styles    *style.Resolver
	ImageGen  generate.ImageGenerator
	Describer transition.ImageDiffDescriber
	VideoGen  generate.VideoGenerator
	FFmpeg    compose.Executor
	Notifier  adapters.SlackNotifier
	Publisher adapters.Publisher
}

func NewVideoPipeline(deps Dependencies) *VideoPipeline {
	return &VideoPipeline{
		cfg:       deps.Config,
		plans:     deps.Plans,
		styles:    deps.Styles,
		imageGen:  deps.ImageGen,
		describer: deps.Describer,
		videoGen:  deps.VideoGen,
		ffmpeg:    deps.FFmpeg,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
	}
}

// Execute はペイロード1件分の実行を行い、結果を返します。
// ジョブ単位の失敗は部分成功として結果に集約されるため、
// このメソッド自体はエラーを返しません。
func (p *VideoPipeline) Execute(ctx context.Context, payload domain.GenerateTaskPayload) domain.RunResult {
	exec := &videoExecution{
		pipeline:  p,
		payload:   payload,
		startTime: time.Now(),
	}
	return exec.run(ctx)
}

// planHash は計画の同一性判定キーを計算します。再開時の互換性判定に使います。
func planHash(pl domain.SlidePlan, bucket string) (string, error) {
	data, err := json.Marshal(pl)
	if err != nil {
		return "", fmt.Errorf("計画のシリアライズに失敗しました: %w", err)
	}
	sum := sha256.Sum256(append(data, []byte("|"+bucket)...))
	return hex.EncodeToString(sum[:])[:16], nil
}
