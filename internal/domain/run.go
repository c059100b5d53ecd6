package domain

// RunStatus は1回の実行全体の最終結果です。
type RunStatus string

const (
	// RunSuccess は全ジョブが succeeded で完了したことを示します。
	RunSuccess RunStatus = "success"
	// RunPartialSuccess は一部のジョブが failed だが、利用可能な
	// 部分成果物が生成されたことを示します。
	RunPartialSuccess RunStatus = "partial_success"
	// RunFailed は致命的エラーにより実行が中断されたことを示します。
	RunFailed RunStatus = "failed"
)

// RunResult は実行結果の報告です。失敗したスライド番号と
// トランジションキーは常に含めます。
type RunResult struct {
	RunID             string    `json:"run_id"`
	Status            RunStatus `json:"status"`
	OutputDir         string    `json:"output_dir"`
	ComposedVideo     string    `json:"composed_video,omitempty"`
	FailedSlides      []int     `json:"failed_slides,omitempty"`
	FailedTransitions []string  `json:"failed_transitions,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// GenerateTaskPayload は、タスクキュー経由で渡される生成指示を表します。
type GenerateTaskPayload struct {
	// RunID は実行を一意に識別します。再投入時も同じIDで再開されます。
	RunID string `json:"run_id"`
	// Document はスライド化する元ドキュメント本文です。
	Document string `json:"document"`
	// Bucket は要求スライド枚数帯です。(例: "5", "5-10", "10-15", "20-25")
	Bucket string `json:"bucket"`
	// StyleID は使用するスタイル定義のIDまたはパスです。
	StyleID string `json:"style_id"`
	// Resolution は画像解像度です。(2K / 4K)
	Resolution Resolution `json:"resolution"`
	// SkipVideo が真の場合、画像生成のみで終了します。
	SkipVideo bool `json:"skip_video"`
}

const CategoryNotAvailable = "N/A"

// NotificationRequest は Slack 等の通知コンポーネントで共有されるデータ構造です。
// 生成されたプレゼンテーションのメタデータを通知先に伝えるために使用します。
type NotificationRequest struct {
	// OutputCategory は、出力先の種別です。(例: "ppt-video", "ppt-images")
	OutputCategory string `json:"output_category"`

	// TargetTitle は、生成物のタイトルです。
	TargetTitle string `json:"target_title"`

	// ExecutionMode は、実行された設定の要約です。(例: "5-10 / 2K")
	ExecutionMode string `json:"execution_mode"`
}
