package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Executor は ffmpeg / ffprobe の実行を抽象化します。
// 合成ロジックのテストでは外部プロセスを起動しない偽物に差し替えます。
type Executor interface {
	Run(ctx context.Context, args ...string) error
	Probe(ctx context.Context, mediaPath string) (durationSeconds float64, err error)
}

// FFmpegExecutor は実際の ffmpeg バイナリを子プロセスとして起動する実装です。
type FFmpegExecutor struct {
	ffmpegPath  string
	ffprobePath string
}

func NewFFmpegExecutor(ffmpegPath string) *FFmpegExecutor {
	return &FFmpegExecutor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1),
	}
}

// Run は ffmpeg を実行します。失敗時は stderr の末尾を含めて返します。
func (e *FFmpegExecutor) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg の実行に失敗しました: %w: %s", err, tail(stderr.String(), 800))
	}
	return nil
}

// probeFormat は ffprobe -of json の format セクションです。
type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe は ffprobe でメディアの長さ（秒）を取得します。
func (e *FFmpegExecutor) Probe(ctx context.Context, mediaPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		mediaPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe の実行に失敗しました: %w: %s", err, tail(stderr.String(), 400))
	}

	var result probeFormat
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return 0, fmt.Errorf("ffprobe 出力の解析に失敗しました: %w", err)
	}
	duration, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe が不正な duration を返しました %q: %w", result.Format.Duration, err)
	}
	return duration, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
