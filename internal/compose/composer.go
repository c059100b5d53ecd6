package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

// セグメント種別。segments.json の契約値です。
const (
	SegmentTypePreview    = "preview"
	SegmentTypeTransition = "transition"
	SegmentTypeHold       = "hold"
)

// Segment は最終動画内の1区間のオフセット情報です。
// 外部プレイヤーがチャプター移動に使用します。
type Segment struct {
	SegmentType string  `json:"segment_type"`
	Key         string  `json:"key"`
	StartOffset float64 `json:"start_offset"`
	EndOffset   float64 `json:"end_offset"`
}

// Options は合成の出力パラメータです。
type Options struct {
	Resolution   string // 例: "1920x1080"
	FPS          int
	HoldDuration time.Duration
	// FastConcat は全セグメントが正規化済みの場合の再エンコード無し結合です。
	FastConcat bool
}

// Composer はスライド静止区間とトランジション動画を1本の動画に結合します。
type Composer struct {
	exec Executor
	out  *output.Manager
	opts Options
}

func NewComposer(exec Executor, out *output.Manager, opts Options) *Composer {
	return &Composer{exec: exec, out: out, opts: opts}
}

// clip は結合対象の1区間です。duration は segments.json 用に確定させます。
type clip struct {
	segmentType string
	key         string
	path        string
	duration    float64
}

// Compose は合成順序の契約に従って最終動画を生成します。
// 順序: プレビュー → 各隣接ペアについて「トランジション → 遷移先スライドの静止区間」。
// プレビューまたはトランジションが欠けている場合は CompositionBlockedError を
// 返し、ディスク上の部分成果物は再開用にそのまま残します。
func (c *Composer) Compose(ctx context.Context, plan domain.SlidePlan) (string, []Segment, error) {
	clips, err := c.collectClips(ctx, plan)
	if err != nil {
		return "", nil, err
	}
	if len(clips) == 0 {
		return "", nil, &domain.CompositionBlockedError{Missing: []string{"all segments"}}
	}

	dst := c.out.ComposedVideoPath()
	if c.opts.FastConcat {
		err = c.fastConcat(ctx, clips, dst)
	} else {
		err = c.normalizedConcat(ctx, clips, dst)
	}
	if err != nil {
		return "", nil, err
	}

	segments := make([]Segment, 0, len(clips))
	offset := 0.0
	for _, cl := range clips {
		segments = append(segments, Segment{
			SegmentType: cl.segmentType,
			Key:         cl.key,
			StartOffset: offset,
			EndOffset:   offset + cl.duration,
		})
		offset += cl.duration
	}
	if err := c.out.SaveSegments(segments); err != nil {
		return "", nil, err
	}

	slog.Info("Composition finished",
		"output", dst,
		"segments", len(segments),
		"total_duration", fmt.Sprintf("%.1fs", offset),
	)
	return dst, segments, nil
}

// collectClips はマニフェストを検証し、結合順のクリップ列を組み立てます。
// 静止区間クリップはここで ffmpeg により生成されます。
func (c *Composer) collectClips(ctx context.Context, plan domain.SlidePlan) ([]clip, error) {
	manifest := c.out.Manifest()
	var clips []clip
	var missing []string

	if entry, ok := manifest.FindSegment(domain.PreviewKey); ok && entry.Status == domain.JobSucceeded && fileExists(entry.AssetPath) {
		duration, err := c.exec.Probe(ctx, entry.AssetPath)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip{SegmentTypePreview, domain.PreviewKey, entry.AssetPath, duration})
	} else {
		missing = append(missing, domain.PreviewKey)
	}

	for i := 0; i+1 < len(plan.Slides); i++ {
		from := plan.Slides[i]
		to := plan.Slides[i+1]
		key := domain.TransitionKey(from.Number, to.Number)

		entry, ok := manifest.FindSegment(key)
		if !ok || entry.Status != domain.JobSucceeded || !fileExists(entry.AssetPath) {
			missing = append(missing, key)
			continue
		}
		slideEntry, ok := manifest.FindSlide(to.Number)
		if !ok || slideEntry.Status != domain.JobSucceeded || !fileExists(slideEntry.AssetPath) {
			missing = append(missing, domain.SlideKey(to.Number))
			continue
		}

		duration, err := c.exec.Probe(ctx, entry.AssetPath)
		if err != nil {
			return nil, err
		}
		holdPath, err := c.buildHoldClip(ctx, to.Number, slideEntry.AssetPath)
		if err != nil {
			return nil, err
		}

		clips = append(clips,
			clip{SegmentTypeTransition, key, entry.AssetPath, duration},
			clip{SegmentTypeHold, domain.SlideKey(to.Number), holdPath, c.opts.HoldDuration.Seconds()},
		)
	}

	if len(missing) > 0 {
		return nil, &domain.CompositionBlockedError{Missing: missing}
	}
	return clips, nil
}

// buildHoldClip は静止画1枚から固定長の動画クリップを生成します。
func (c *Composer) buildHoldClip(ctx context.Context, slideNumber int, imagePath string) (string, error) {
	w, h, err := parseResolution(c.opts.Resolution)
	if err != nil {
		return "", err
	}
	dst := path.Join(c.out.VideosDir(), fmt.Sprintf("hold_%s.mp4", domain.SlideKey(slideNumber)))

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-c:v", "libx264",
		"-t", fmt.Sprintf("%.2f", c.opts.HoldDuration.Seconds()),
		"-pix_fmt", "yuv420p",
		"-vf", normalizeFilter(w, h),
		"-r", fmt.Sprintf("%d", c.opts.FPS),
		dst,
	}
	if err := c.exec.Run(ctx, args...); err != nil {
		return "", fmt.Errorf("静止区間クリップの生成に失敗しました (slide %d): %w", slideNumber, err)
	}
	return dst, nil
}

// normalizedConcat は解像度・SAR・フレームレートを揃えながら結合します。
// 入力の性質が不揃いでも安全に結合できる標準経路です。
func (c *Composer) normalizedConcat(ctx context.Context, clips []clip, dst string) error {
	w, h, err := parseResolution(c.opts.Resolution)
	if err != nil {
		return err
	}

	args := []string{"-y"}
	for _, cl := range clips {
		args = append(args, "-i", cl.path)
	}

	var filter strings.Builder
	for i := range clips {
		fmt.Fprintf(&filter, "[%d:v]%s,fps=%d[v%d];", i, normalizeFilter(w, h), c.opts.FPS, i)
	}
	for i := range clips {
		fmt.Fprintf(&filter, "[v%d]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=0[outv]", len(clips))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		dst,
	)
	return c.exec.Run(ctx, args...)
}

// fastConcat は concat demuxer による再エンコード無しの結合です。
// 全入力のコーデックとパラメータが揃っている場合のみ使用できます。
func (c *Composer) fastConcat(ctx context.Context, clips []clip, dst string) error {
	listPath := path.Join(c.out.VideosDir(), "concat_list.txt")
	var sb strings.Builder
	for _, cl := range clips {
		// concat demuxer のエスケープ規約に合わせる。
		sb.WriteString("file '" + strings.ReplaceAll(cl.path, "'", `'\''`) + "'\n")
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("結合リストの書き出しに失敗しました: %w", err)
	}

	return c.exec.Run(ctx,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		dst,
	)
}

// normalizeFilter はアスペクト比を保ったままレターボックスで
// 指定解像度に正規化するフィルタ列を返します。
func normalizeFilter(w, h int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		w, h, w, h,
	)
}

func parseResolution(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, &domain.ConfigError{Field: "OUTPUT_VIDEO_RESOLUTION", Reason: fmt.Sprintf("must look like 1920x1080, got %q", s)}
	}
	return w, h, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
