package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はプロバイダエラーの分類です。
// transient はバックオフ付きで再試行し、fatal はステージ全体を即座に中断します。
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindFatal     ErrorKind = "fatal"
)

// ProviderError は外部生成プロバイダ呼び出しの失敗を表します。
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewTransientError は再試行可能なプロバイダエラーを生成します。
func NewTransientError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorKindTransient, Err: err}
}

// NewFatalError は実行全体を中断すべきプロバイダエラーを生成します。
// (認証失敗・クォータ枯渇・非対応リクエストなど)
func NewFatalError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrorKindFatal, Err: err}
}

// IsFatalProvider は err が fatal 分類のプロバイダエラーかどうかを判定します。
func IsFatalProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ErrorKindFatal
}

// IsTransientProvider は err が transient 分類のプロバイダエラーかどうかを判定します。
func IsTransientProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ErrorKindTransient
}

// ConfigError はプロバイダ呼び出し前に検出される設定不備です。
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// PlanError はドキュメントから有効な計画を構築できない場合の失敗です。
type PlanError struct {
	Reason   string
	Sections int
	Minimum  int
}

func (e *PlanError) Error() string {
	if e.Minimum > 0 {
		return fmt.Sprintf("plan error: %s (sections=%d, bucket minimum=%d)", e.Reason, e.Sections, e.Minimum)
	}
	return "plan error: " + e.Reason
}

// StyleNotFoundError はスタイルIDが解決できない場合の失敗です。
type StyleNotFoundError struct {
	StyleID string
}

func (e *StyleNotFoundError) Error() string {
	return fmt.Sprintf("style not found: %q", e.StyleID)
}

// TemplateError はスタイル定義に必須プレースホルダやセクションが
// 欠けている場合の失敗です。
type TemplateError struct {
	StyleID string
	Missing string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("style template %q is missing %s", e.StyleID, e.Missing)
}

// IncompleteInputError はトランジション解析に必要なスライド画像が
// 欠落している場合の失敗です。どのスライドが欠けているかを必ず示します。
type IncompleteInputError struct {
	MissingSlide int
}

func (e *IncompleteInputError) Error() string {
	return fmt.Sprintf("transition analysis requires slide %d, but it has not succeeded", e.MissingSlide)
}

// CompositionBlockedError は合成に必要なセグメントが欠けている場合の失敗です。
// 合成ステージのみを中断し、ディスク上の部分成果物は再開用に残します。
type CompositionBlockedError struct {
	Missing []string
}

func (e *CompositionBlockedError) Error() string {
	return "composition blocked, missing segments: " + strings.Join(e.Missing, ", ")
}
