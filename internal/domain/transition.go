package domain

// TransitionSpec は隣接する2枚のスライド間のトランジション動画1本分の仕様です。
// N枚のスライドに対して常に N-1 本が生成されます。
type TransitionSpec struct {
	FromSlide       int     `json:"from_slide"`
	ToSlide         int     `json:"to_slide"`
	Prompt          string  `json:"prompt"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PreviewSpec は1枚目のスライドに対するループ可能なプレビュー動画の仕様です。
type PreviewSpec struct {
	SlidePath string `json:"slide_path"`
	Prompt    string `json:"prompt"`
}

// TransitionPrompts は transition_prompts.json の永続化フォーマットです。
// 外部プレイヤーおよび再実行時の両方から参照される契約です。
type TransitionPrompts struct {
	Preview     *PreviewSpec     `json:"preview"`
	Transitions []TransitionSpec `json:"transitions"`
}
