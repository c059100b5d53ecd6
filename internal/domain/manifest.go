package domain

import (
	"fmt"
	"sort"
)

// JobStatus は生成ジョブ（スライド画像・動画セグメント）の状態機械です。
// pending → running → {succeeded | retrying → running | failed}
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobRetrying  JobStatus = "retrying"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// ManifestEntry は1ジョブ分の永続化レコードです。
// ContentHash が冪等性キーとなり、同一ハッシュの succeeded エントリが
// 既に存在する場合、再実行時にプロバイダ呼び出しをスキップします。
type ManifestEntry struct {
	Key         string    `json:"key"`
	AssetPath   string    `json:"asset_path"`
	ContentHash string    `json:"content_hash"`
	Status      JobStatus `json:"status"`
	Retries     int       `json:"retries"`
	Error       string    `json:"error,omitempty"`
}

// Manifest は1回の実行に対するジョブ状態と成果物位置の永続化レコードです。
// 所有者は output.Manager のみで、他コンポーネントは参照のみ受け取ります。
type Manifest struct {
	PlanHash   string          `json:"plan_hash"`
	StyleID    string          `json:"style_id"`
	Resolution Resolution      `json:"resolution"`
	Slides     []ManifestEntry `json:"slides"`
	Segments   []ManifestEntry `json:"segments"`
}

// SlideKey はスライド番号からマニフェストキーを組み立てます。(例: "slide-03")
func SlideKey(number int) string {
	return fmt.Sprintf("slide-%02d", number)
}

// TransitionKey はトランジションのマニフェストキーを組み立てます。(例: "transition_02_to_03")
func TransitionKey(from, to int) string {
	return fmt.Sprintf("transition_%02d_to_%02d", from, to)
}

// PreviewKey はプレビューセグメントのマニフェストキーです。
const PreviewKey = "preview"

// CompatibleWith は再開可能な既存マニフェストかどうかを判定します。
// 計画・スタイル・解像度のいずれかが変わっていれば再開できません。
func (m *Manifest) CompatibleWith(planHash, styleID string, resolution Resolution) bool {
	return m.PlanHash == planHash && m.StyleID == styleID && m.Resolution == resolution
}

// FindSlide はスライド番号に対応するエントリを返します。
func (m *Manifest) FindSlide(number int) (ManifestEntry, bool) {
	return findEntry(m.Slides, SlideKey(number))
}

// FindSegment はセグメントキーに対応するエントリを返します。
func (m *Manifest) FindSegment(key string) (ManifestEntry, bool) {
	return findEntry(m.Segments, key)
}

// UpsertSlide はスライドエントリを追加または置換します。
// 完了順に関係なく、常にキー順（＝スライド番号順）を維持します。
func (m *Manifest) UpsertSlide(entry ManifestEntry) {
	m.Slides = upsertEntry(m.Slides, entry)
}

// UpsertSegment はセグメントエントリを追加または置換します。
// preview を先頭に、以降はトランジションをキー順で保持します。
func (m *Manifest) UpsertSegment(entry ManifestEntry) {
	m.Segments = upsertEntry(m.Segments, entry)
}

// FailedSlideNumbers は failed 状態のスライド番号一覧を返します。
func (m *Manifest) FailedSlideNumbers() []int {
	var failed []int
	for _, e := range m.Slides {
		if e.Status == JobFailed {
			var n int
			if _, err := fmt.Sscanf(e.Key, "slide-%d", &n); err == nil {
				failed = append(failed, n)
			}
		}
	}
	return failed
}

// FailedSegmentKeys は failed 状態のセグメントキー一覧を返します。
func (m *Manifest) FailedSegmentKeys() []string {
	var failed []string
	for _, e := range m.Segments {
		if e.Status == JobFailed {
			failed = append(failed, e.Key)
		}
	}
	return failed
}

func findEntry(entries []ManifestEntry, key string) (ManifestEntry, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

func upsertEntry(entries []ManifestEntry, entry ManifestEntry) []ManifestEntry {
	for i, e := range entries {
		if e.Key == entry.Key {
			entries[i] = entry
			return entries
		}
	}
	entries = append(entries, entry)
	sort.Slice(entries, func(i, j int) bool {
		return segmentOrder(entries[i].Key) < segmentOrder(entries[j].Key)
	})
	return entries
}

// segmentOrder はキーの並び替え基準です。preview は常に先頭、
// それ以外はゼロ詰めキーの辞書順がそのまま序数順になります。
func segmentOrder(key string) string {
	if key == PreviewKey {
		return ""
	}
	return key
}
