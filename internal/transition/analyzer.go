package transition

import (
	"context"
	"log/slog"
	"os"
	"path"
	"time"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

// ImageDiffDescriber は2枚のスライド画像を比較し、その間を補間する
// 動画生成プロンプトを記述する能力です。
type ImageDiffDescriber interface {
	// Describe は from から to への変化を動画プロンプトとして記述します。
	Describe(ctx context.Context, fromImage, toImage []byte, contextText string) (string, error)
	// DescribeLoop は1枚の画像に対するループ可能な微細動作を記述します。
	DescribeLoop(ctx context.Context, image []byte) (string, error)
}

// Analyzer は隣接スライドペアごとのトランジションプロンプト一式を構築します。
// 記述器の失敗は静的フォールバックで補うため、解析ステージ自体は
// プロバイダ障害で中断しません。
type Analyzer struct {
	describer ImageDiffDescriber
	fallback  StaticDescriber
	out       *output.Manager
	duration  time.Duration
}

func NewAnalyzer(describer ImageDiffDescriber, out *output.Manager, duration time.Duration) *Analyzer {
	return &Analyzer{describer: describer, out: out, duration: duration}
}

// Build は計画中の全隣接ペアとプレビューのプロンプトを構築し、
// transition_prompts.json として永続化してから返します。
// スライド画像が欠けているペアも仕様としては出力します。
// 後段の動画ステージがソース欠落として failed 判定するためです。
func (a *Analyzer) Build(ctx context.Context, plan domain.SlidePlan) (domain.TransitionPrompts, error) {
	tp := domain.TransitionPrompts{}

	if len(plan.Slides) > 0 {
		first := plan.Slides[0]
		tp.Preview = &domain.PreviewSpec{
			SlidePath: path.Join("images", domain.SlideKey(first.Number)+".png"),
			Prompt:    a.previewPrompt(ctx, first),
		}
	}

	for i := 0; i+1 < len(plan.Slides); i++ {
		from := plan.Slides[i]
		to := plan.Slides[i+1]
		tp.Transitions = append(tp.Transitions, domain.TransitionSpec{
			FromSlide:       from.Number,
			ToSlide:         to.Number,
			Prompt:          a.transitionPrompt(ctx, from, to),
			DurationSeconds: a.duration.Seconds(),
		})
	}

	if err := a.out.SaveTransitionPrompts(tp); err != nil {
		return domain.TransitionPrompts{}, err
	}
	return tp, nil
}

func (a *Analyzer) previewPrompt(ctx context.Context, first domain.Slide) string {
	image, err := a.loadSlideImage(first.Number)
	if err == nil && a.describer != nil {
		prompt, derr := a.describer.DescribeLoop(ctx, image)
		if derr == nil {
			return prompt
		}
		slog.Warn("Preview description failed, using static prompt", "error", derr)
	}
	return a.fallback.LoopPrompt(first)
}

func (a *Analyzer) transitionPrompt(ctx context.Context, from, to domain.Slide) string {
	fromImage, errFrom := a.loadSlideImage(from.Number)
	toImage, errTo := a.loadSlideImage(to.Number)
	if errFrom == nil && errTo == nil && a.describer != nil {
		prompt, derr := a.describer.Describe(ctx, fromImage, toImage, transitionContext(from, to))
		if derr == nil {
			return prompt
		}
		slog.Warn("Transition description failed, using static prompt",
			"from_slide", from.Number, "to_slide", to.Number, "error", derr)
	}
	return a.fallback.TransitionPrompt(from, to)
}

// loadSlideImage は succeeded 済みスライドの画像を読み込みます。
// 欠落は IncompleteInputError として返し、呼び出し側でフォールバックします。
func (a *Analyzer) loadSlideImage(number int) ([]byte, error) {
	manifest := a.out.Manifest()
	entry, ok := manifest.FindSlide(number)
	if !ok || entry.Status != domain.JobSucceeded {
		return nil, &domain.IncompleteInputError{MissingSlide: number}
	}
	data, err := os.ReadFile(entry.AssetPath)
	if err != nil {
		return nil, &domain.IncompleteInputError{MissingSlide: number}
	}
	return data, nil
}

func transitionContext(from, to domain.Slide) string {
	return "From (" + string(from.PageType) + "): " + from.Content +
		"\nTo (" + string(to.PageType) + "): " + to.Content
}
