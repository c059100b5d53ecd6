package transition

import (
	"fmt"

	"ap-ppt-video/internal/domain"
)

// StaticDescriber は画像解析なしで使える汎用プロンプトの供給源です。
// 記述器が設定されていない場合や、記述器が失敗した場合の
// フォールバックとして常に利用可能です。
type StaticDescriber struct{}

// TransitionPrompt はページ種別の組み合わせに応じた汎用トランジション
// プロンプトを返します。どの組み合わせでも文字の安定性を必ず指示します。
func (StaticDescriber) TransitionPrompt(from, to domain.Slide) string {
	motion := "The previous layout smoothly dissolves while the next layout elegantly fades and slides into place."
	switch {
	case from.PageType == domain.PageTypeCover:
		motion = "The title artwork gracefully recedes as the first content layout slides in from the right."
	case to.PageType == domain.PageTypeData:
		motion = "Existing elements glide aside as charts and data visuals assemble piece by piece."
	case to.PageType == domain.PageTypeSummary:
		motion = "Content blocks converge toward the center and settle into a closing summary layout."
	}
	return fmt.Sprintf(
		"Professional presentation slide transition. %s "+
			"Camera remains static. All text stays perfectly sharp, legible and unchanged in wording. "+
			"No new text appears, no text warps or melts. Clean corporate motion design, smooth easing.",
		motion,
	)
}

// LoopPrompt はプレビュー動画向けの汎用プロンプトを返します。
func (StaticDescriber) LoopPrompt(_ domain.Slide) string {
	return "Subtle ambient motion on a professional presentation title slide. " +
		"Gentle light sweep across the background, soft floating highlights. " +
		"Camera remains static. All text stays perfectly sharp and unchanged. " +
		"Seamlessly loopable, calm and premium feel."
}
