package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"ap-ppt-video/internal/domain"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// --- パスヘルパー ---

// RunDir は特定の実行に対する一意の作業ディレクトリを返します。
// 例: "outputs/20260823_153000_a1b2c3d4"
func (c Config) RunDir(runID string) string {
	return path.Join(c.OutputBaseDir, runID)
}

// ImagesDir はスライド画像保存用のサブディレクトリパスを返します。
func (c Config) ImagesDir(runID string) string {
	return path.Join(c.RunDir(runID), "images")
}

// VideosDir は動画セグメント保存用のサブディレクトリパスを返します。
func (c Config) VideosDir(runID string) string {
	return path.Join(c.RunDir(runID), "videos")
}

// --- バリデーション ---

// ValidateEssentialConfig はアプリケーション実行に不可欠な設定を検証します。
// プロバイダ呼び出しより前に失敗させるための事前チェックです。
func ValidateEssentialConfig(cfg *Config) error {
	if cfg.GeminiAPIKey == "" {
		return &domain.ConfigError{Field: "GEMINI_API_KEY", Reason: "not set"}
	}

	switch cfg.Resolution {
	case domain.Resolution2K, domain.Resolution4K:
	default:
		return &domain.ConfigError{Field: "RESOLUTION", Reason: fmt.Sprintf("must be 2K or 4K, got %q", cfg.Resolution)}
	}

	if cfg.ImageConcurrency < 1 || cfg.VideoConcurrency < 1 {
		return &domain.ConfigError{Field: "IMAGE_CONCURRENCY/VIDEO_CONCURRENCY", Reason: "must be at least 1"}
	}

	if cfg.ImageMaxAttempts < 1 || cfg.VideoMaxAttempts < 1 {
		return &domain.ConfigError{Field: "IMAGE_MAX_ATTEMPTS/VIDEO_MAX_ATTEMPTS", Reason: "must be at least 1"}
	}

	return nil
}

// ValidateVideoCredentials は動画ステージを実行する場合にのみ必要な
// Kling 資格情報を検証します。
func ValidateVideoCredentials(cfg *Config) error {
	if cfg.KlingAccessKey == "" || cfg.KlingSecretKey == "" {
		return &domain.ConfigError{
			Field:  "KLING_ACCESS_KEY/KLING_SECRET_KEY",
			Reason: "video synthesis requires Kling API credentials",
		}
	}
	return nil
}

// RedactKey は診断ログ向けにキーの先頭と末尾のみを残してマスクします。
// 資格情報そのものは永続成果物にもログにも決して書き出しません。
func RedactKey(key string) string {
	if len(key) < 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
