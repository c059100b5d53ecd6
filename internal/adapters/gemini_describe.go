package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"ap-ppt-video/internal/config"
	"ap-ppt-video/internal/domain"
)

// transitionSystemPrompt は2枚のスライド差分を動画プロンプトに変換する際の指示です。
// 文字の安定性はトランジション品質の生命線なので、必ず明示させます。
const transitionSystemPrompt = `You are a motion designer writing a prompt for an image-to-video model.
Compare the two presentation slides (first = start frame, last = end frame) and describe
a smooth, professional transition between them in 2-3 sentences.

Rules:
- Describe only the motion of layout elements (fade, slide, scale, dissolve).
- All text must stay perfectly sharp, legible and unchanged in wording at both ends.
- No new text may appear mid-transition, no text may warp, melt or flicker.
- Camera stays static. No scene changes, no people, no objects not present in the slides.
- Output the prompt text only, without any preamble.`

// previewSystemPrompt はループ動画向けの指示です。
const previewSystemPrompt = `You are a motion designer writing a prompt for an image-to-video model.
Describe subtle, seamlessly loopable ambient motion for this presentation slide in 1-2 sentences
(light sweeps, soft glows, gentle particle drift). All text must stay perfectly sharp and unchanged.
Camera stays static. Output the prompt text only.`

// GeminiDescribeAdapter は Gemini のマルチモーダルモデルで
// スライド画像ペアを解析する ImageDiffDescriber 実装です。
type GeminiDescribeAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiDescribeAdapter(ctx context.Context, apiKey, model string) (*GeminiDescribeAdapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}

	slog.Info("Gemini vision client initialized",
		"model", model,
		"api_key", config.RedactKey(apiKey),
	)
	return &GeminiDescribeAdapter{client: client, model: model}, nil
}

// Describe は from から to への変化を動画生成プロンプトとして記述します。
func (a *GeminiDescribeAdapter) Describe(ctx context.Context, fromImage, toImage []byte, contextText string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(transitionSystemPrompt + "\n\nSlide contents:\n" + contextText),
		genai.NewPartFromBytes(fromImage, "image/png"),
		genai.NewPartFromBytes(toImage, "image/png"),
	}
	return a.generateText(ctx, parts)
}

// DescribeLoop は1枚の画像に対するループ可能な微細動作を記述します。
func (a *GeminiDescribeAdapter) DescribeLoop(ctx context.Context, image []byte) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(previewSystemPrompt),
		genai.NewPartFromBytes(image, "image/png"),
	}
	return a.generateText(ctx, parts)
}

func (a *GeminiDescribeAdapter) generateText(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", classifyGeminiError("gemini-vision", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", domain.NewTransientError("gemini-vision", errors.New("response contained no text"))
	}
	return text, nil
}
