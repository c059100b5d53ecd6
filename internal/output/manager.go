package output

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"ap-ppt-video/internal/domain"
)

// ファイル名の契約。外部プレイヤーと再開処理の両方が参照します。
const (
	PlanFileName              = "slides_plan.json"
	PromptsFileName           = "prompts.json"
	TransitionPromptsFileName = "transition_prompts.json"
	ManifestFileName          = "manifest.json"
	SegmentsFileName          = "segments.json"
	ComposedVideoFileName     = "full_ppt_video.mp4"
)

// PromptRecord は prompts.json に書き出すスライド1枚分のレコードです。
type PromptRecord struct {
	SlideNumber int             `json:"slide_number"`
	PageType    domain.PageType `json:"page_type"`
	Prompt      string          `json:"prompt"`
}

// Manager は1回の実行に対する出力ディレクトリとマニフェストの唯一の所有者です。
// マニフェストへの書き込みはすべてこの構造体のミューテックスを通ります。
type Manager struct {
	baseDir string
	runID   string

	mu       sync.Mutex
	manifest *domain.Manifest
}

// NewRunID は実行ディレクトリ名を生成します。
// タイトルが外部入力でも安全なディレクトリ名になるよう、
// タイムスタンプとハッシュの組み合わせに変換します。
func NewRunID(title string) string {
	timestamp := time.Now().Format("20060102_150405")
	nano := time.Now().UnixNano()
	hash := md5.Sum([]byte(title + fmt.Sprintf("%d", nano)))
	return fmt.Sprintf("%s_%s", timestamp, hex.EncodeToString(hash[:])[:8])
}

// Begin は実行ディレクトリを初期化し、マニフェストを用意します。
// 互換性のある既存マニフェストが見つかった場合は再開モードになり、
// succeeded 済みジョブの結果がそのまま引き継がれます。
func Begin(baseDir, runID, planHash, styleID string, resolution domain.Resolution) (*Manager, bool, error) {
	m := &Manager{baseDir: baseDir, runID: runID}

	for _, dir := range []string{m.RunDir(), m.ImagesDir(), m.VideosDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
		}
	}

	existing, err := loadManifest(m.manifestPath())
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if !existing.CompatibleWith(planHash, styleID, resolution) {
			return nil, false, &domain.ConfigError{
				Field:  "run_id",
				Reason: fmt.Sprintf("run %s has an existing manifest with different plan/style/resolution; use a new run_id", runID),
			}
		}
		slog.Info("Resuming run from existing manifest",
			"run_id", runID,
			"slides", len(existing.Slides),
			"segments", len(existing.Segments),
		)
		m.manifest = existing
		return m, true, nil
	}

	m.manifest = &domain.Manifest{
		PlanHash:   planHash,
		StyleID:    styleID,
		Resolution: resolution,
	}
	if err := m.persistLocked(); err != nil {
		return nil, false, err
	}
	return m, false, nil
}

func loadManifest(p string) (*domain.Manifest, error) {
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("マニフェストの読み込みに失敗しました: %w", err)
	}
	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("マニフェストの解析に失敗しました: %w", err)
	}
	return &m, nil
}

// --- パス ---

func (m *Manager) RunID() string     { return m.runID }
func (m *Manager) RunDir() string    { return path.Join(m.baseDir, m.runID) }
func (m *Manager) ImagesDir() string { return path.Join(m.RunDir(), "images") }
func (m *Manager) VideosDir() string { return path.Join(m.RunDir(), "videos") }

// SlideImagePath はスライド画像の保存先です。(例: "images/slide-03.png")
func (m *Manager) SlideImagePath(number int) string {
	return path.Join(m.ImagesDir(), domain.SlideKey(number)+".png")
}

// SegmentVideoPath は動画セグメントの保存先です。(例: "videos/transition_02_to_03.mp4")
func (m *Manager) SegmentVideoPath(key string) string {
	return path.Join(m.VideosDir(), key+".mp4")
}

// ComposedVideoPath は最終合成動画の保存先です。
func (m *Manager) ComposedVideoPath() string {
	return path.Join(m.RunDir(), ComposedVideoFileName)
}

func (m *Manager) manifestPath() string {
	return path.Join(m.RunDir(), ManifestFileName)
}

// --- 成果物の書き出し ---

// SavePlan は slides_plan.json を書き出します。
func (m *Manager) SavePlan(plan domain.SlidePlan) error {
	return m.writeJSON(PlanFileName, plan)
}

// SavePrompts は解決済みプロンプト一覧を prompts.json に書き出します。
// プロンプトはスタイルと本文のみから構成され、資格情報は決して含まれません。
func (m *Manager) SavePrompts(records []PromptRecord) error {
	return m.writeJSON(PromptsFileName, records)
}

// SaveTransitionPrompts は transition_prompts.json を書き出します。
func (m *Manager) SaveTransitionPrompts(tp domain.TransitionPrompts) error {
	return m.writeJSON(TransitionPromptsFileName, tp)
}

// SaveSegments は segments.json を書き出します。
func (m *Manager) SaveSegments(v any) error {
	return m.writeJSON(SegmentsFileName, v)
}

// writeJSON は一時ファイルへの書き込みと rename による原子的置換を行います。
// 途中でクラッシュしても壊れた JSON が残らないことを保証します。
func (m *Manager) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%s のシリアライズに失敗しました: %w", name, err)
	}
	return atomicWrite(path.Join(m.RunDir(), name), data)
}

func atomicWrite(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("%s への置換に失敗しました: %w", dst, err)
	}
	return nil
}

// WriteAsset はバイナリ成果物（画像など）を原子的に書き出します。
func (m *Manager) WriteAsset(dst string, data []byte) error {
	return atomicWrite(dst, data)
}

// --- マニフェスト更新 ---

// Manifest は現在のマニフェストのコピーを返します。
func (m *Manager) Manifest() domain.Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyManifest(m.manifest)
}

// CommitSlide はスライドジョブの状態遷移を記録し、即座に永続化します。
func (m *Manager) CommitSlide(entry domain.ManifestEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.UpsertSlide(entry)
	return m.persistLocked()
}

// CommitSegment は動画セグメントジョブの状態遷移を記録し、即座に永続化します。
func (m *Manager) CommitSegment(entry domain.ManifestEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifest.UpsertSegment(entry)
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	data, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("マニフェストのシリアライズに失敗しました: %w", err)
	}
	return atomicWrite(m.manifestPath(), data)
}

func copyManifest(src *domain.Manifest) domain.Manifest {
	dst := domain.Manifest{
		PlanHash:   src.PlanHash,
		StyleID:    src.StyleID,
		Resolution: src.Resolution,
		Slides:     make([]domain.ManifestEntry, len(src.Slides)),
		Segments:   make([]domain.ManifestEntry, len(src.Segments)),
	}
	copy(dst.Slides, src.Slides)
	copy(dst.Segments, src.Segments)
	return dst
}

// Finalize はマニフェストの最終状態から実行結果を組み立てます。
func (m *Manager) Finalize(composedVideo string, fatalErr error) domain.RunResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := domain.RunResult{
		RunID:             m.runID,
		OutputDir:         m.RunDir(),
		ComposedVideo:     composedVideo,
		FailedSlides:      m.manifest.FailedSlideNumbers(),
		FailedTransitions: m.manifest.FailedSegmentKeys(),
	}

	switch {
	case fatalErr != nil:
		result.Status = domain.RunFailed
		result.Error = fatalErr.Error()
	case len(result.FailedSlides) > 0 || len(result.FailedTransitions) > 0:
		result.Status = domain.RunPartialSuccess
	default:
		result.Status = domain.RunSuccess
	}
	return result
}
