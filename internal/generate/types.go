package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ap-ppt-video/internal/domain"
)

// ImageRequest はスライド画像1枚分の生成リクエストです。
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	Resolution     domain.Resolution
}

// ImageGenerator はテキストプロンプトから静止画像を生成する能力です。
// 実装はバイト列（PNG）を返し、ファイル配置は呼び出し側が行います。
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// VideoRequest は画像ペアからトランジション動画を生成するリクエストです。
// EndImage が nil の場合はループ動画（プレビュー）として扱います。
type VideoRequest struct {
	StartImage      []byte
	EndImage        []byte
	Prompt          string
	NegativePrompt  string
	DurationSeconds float64
}

// VideoTaskState は非同期動画生成タスクの状態です。
type VideoTaskState string

const (
	VideoTaskSubmitted  VideoTaskState = "submitted"
	VideoTaskProcessing VideoTaskState = "processing"
	VideoTaskSucceeded  VideoTaskState = "succeed"
	VideoTaskFailed     VideoTaskState = "failed"
)

// VideoTaskStatus はポーリング1回分の結果です。
// 成功時のみ VideoURL が設定されます。
type VideoTaskStatus struct {
	State    VideoTaskState
	VideoURL string
	Message  string
}

// VideoGenerator は非同期の動画生成プロバイダの能力です。
// Submit でタスクを投入し、Status をポーリングして完了を待ち、
// Download で成果物を取得します。
type VideoGenerator interface {
	Submit(ctx context.Context, req VideoRequest) (taskID string, err error)
	Status(ctx context.Context, taskID string) (VideoTaskStatus, error)
	Download(ctx context.Context, videoURL string) ([]byte, error)
}

// ImageContentHash は画像ジョブの冪等性キーを計算します。
// 同一の入力に対して同一のハッシュとなり、再実行時のスキップ判定に使います。
func ImageContentHash(styleID, content string, resolution domain.Resolution, prompt string) string {
	return contentHash(styleID, content, string(resolution), prompt)
}

// VideoContentHash は動画セグメントジョブの冪等性キーを計算します。
func VideoContentHash(fromHash, toHash, prompt string, durationSeconds float64) string {
	return contentHash(fromHash, toHash, prompt, fmt.Sprintf("%.1f", durationSeconds))
}

func contentHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}
