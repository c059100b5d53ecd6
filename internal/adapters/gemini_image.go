package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"ap-ppt-video/internal/config"
	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/generate"
)

// GeminiImageAdapter は Gemini の画像生成モデルによる ImageGenerator 実装です。
type GeminiImageAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiImageAdapter(ctx context.Context, apiKey, model string) (*GeminiImageAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}

	slog.Info("Gemini image client initialized",
		"model", model,
		"api_key", config.RedactKey(apiKey),
	)
	return &GeminiImageAdapter{client: client, model: model}, nil
}

// GenerateImage はプロンプトからスライド画像を1枚生成します。
// ネガティブプロンプトは画像生成APIに専用フィールドが無いため、
// 回避指示としてプロンプト末尾に併記します。
func (a *GeminiImageAdapter) GenerateImage(ctx context.Context, req generate.ImageRequest) ([]byte, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt += "\n\nAvoid: " + req.NegativePrompt
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   string(req.Resolution),
		},
	})
	if err != nil {
		return nil, classifyGeminiError("gemini-image", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, domain.NewTransientError("gemini-image", errors.New("response contained no image data"))
}

// classifyGeminiError は API エラーを transient / fatal に分類します。
// レート制限とサーバ側障害は再試行、認証・リクエスト不備は即中断です。
func classifyGeminiError(provider string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.Code == 408 || apiErr.Code >= 500:
			return domain.NewTransientError(provider, err)
		case apiErr.Code >= 400:
			return domain.NewFatalError(provider, err)
		}
	}
	// ネットワーク起因などコード不明のエラーは再試行可能として扱います。
	return domain.NewTransientError(provider, err)
}
