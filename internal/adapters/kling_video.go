package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ap-ppt-video/internal/config"
	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/generate"
)

const (
	defaultKlingBaseURL = "https://api-singapore.klingai.com"
	klingTokenLifetime  = 30 * time.Minute
	// maxVideoDownloadBytes 成果物ダウンロードの上限。異常応答からの防御です。
	maxVideoDownloadBytes = 512 << 20
)

// KlingVideoAdapter は Kling API による非同期動画生成の VideoGenerator 実装です。
// 認証はリクエストごとに署名する短命の JWT (HS256) で行います。
type KlingVideoAdapter struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
	secretKey  string
	model      string
	mode       string
}

func NewKlingVideoAdapter(httpClient *http.Client, accessKey, secretKey, model, mode string) *KlingVideoAdapter {
	slog.Info("Kling video client initialized",
		"model", model,
		"mode", mode,
		"access_key", config.RedactKey(accessKey),
	)
	return &KlingVideoAdapter{
		httpClient: httpClient,
		baseURL:    defaultKlingBaseURL,
		accessKey:  accessKey,
		secretKey:  secretKey,
		model:      model,
		mode:       mode,
	}
}

// signToken は API 呼び出し用の短命トークンを署名します。
// クロックスキュー対策として nbf を5秒過去に設定します。
func (a *KlingVideoAdapter) signToken(now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": a.accessKey,
		"exp": now.Add(klingTokenLifetime).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
	})
	signed, err := token.SignedString([]byte(a.secretKey))
	if err != nil {
		return "", fmt.Errorf("APIトークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}

// klingSubmitRequest は image2video 投入リクエストのワイヤ形式です。
type klingSubmitRequest struct {
	ModelName      string `json:"model_name"`
	Image          string `json:"image"`
	ImageTail      string `json:"image_tail,omitempty"`
	Duration       string `json:"duration"`
	Mode           string `json:"mode"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// klingResponse は Kling API 共通のレスポンス外装です。
type klingResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// Submit は画像ペアから動画生成タスクを投入し、タスクIDを返します。
func (a *KlingVideoAdapter) Submit(ctx context.Context, req generate.VideoRequest) (string, error) {
	body := klingSubmitRequest{
		ModelName:      a.model,
		Image:          base64.StdEncoding.EncodeToString(req.StartImage),
		Duration:       klingDuration(req.DurationSeconds),
		Mode:           a.mode,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
	}
	if len(req.EndImage) > 0 {
		body.ImageTail = base64.StdEncoding.EncodeToString(req.EndImage)
	}

	var resp klingResponse
	if err := a.call(ctx, http.MethodPost, "/v1/videos/image2video", body, &resp); err != nil {
		return "", err
	}
	if resp.Data.TaskID == "" {
		return "", domain.NewTransientError("kling", fmt.Errorf("submit returned no task_id: %s", resp.Message))
	}
	return resp.Data.TaskID, nil
}

// Status はタスクの現在状態を取得します。
func (a *KlingVideoAdapter) Status(ctx context.Context, taskID string) (generate.VideoTaskStatus, error) {
	var resp klingResponse
	if err := a.call(ctx, http.MethodGet, "/v1/videos/image2video/"+taskID, nil, &resp); err != nil {
		return generate.VideoTaskStatus{}, err
	}

	status := generate.VideoTaskStatus{
		State:   generate.VideoTaskState(resp.Data.TaskStatus),
		Message: resp.Data.TaskStatusMsg,
	}
	if status.State == generate.VideoTaskSucceeded {
		if len(resp.Data.TaskResult.Videos) == 0 {
			return generate.VideoTaskStatus{}, domain.NewTransientError("kling",
				fmt.Errorf("task %s succeeded but returned no video", taskID))
		}
		status.VideoURL = resp.Data.TaskResult.Videos[0].URL
	}
	return status, nil
}

// Download は完了したタスクの動画をダウンロードします。
func (a *KlingVideoAdapter) Download(ctx context.Context, videoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ダウンロードリクエストの構築に失敗しました: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewTransientError("kling", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewTransientError("kling", fmt.Errorf("video download returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVideoDownloadBytes))
	if err != nil {
		return nil, domain.NewTransientError("kling", err)
	}
	return data, nil
}

// call は認証付きの API 呼び出しを実行し、レスポンス外装を検証します。
func (a *KlingVideoAdapter) call(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストのシリアライズに失敗しました: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("リクエストの構築に失敗しました: %w", err)
	}
	token, err := a.signToken(time.Now())
	if err != nil {
		return domain.NewFatalError("kling", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return domain.NewTransientError("kling", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewTransientError("kling", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewFatalError("kling", fmt.Errorf("authentication rejected (status %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.NewTransientError("kling", fmt.Errorf("API returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return domain.NewFatalError("kling", fmt.Errorf("API rejected request (status %d): %s", resp.StatusCode, respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.NewTransientError("kling", fmt.Errorf("failed to decode response: %w", err))
	}
	if kr, ok := out.(*klingResponse); ok && kr.Code != 0 {
		return domain.NewTransientError("kling", fmt.Errorf("API returned code %d: %s", kr.Code, kr.Message))
	}
	return nil
}

// klingDuration は秒数を API が受理する "5" / "10" に丸めます。
func klingDuration(seconds float64) string {
	if seconds > 7.5 {
		return "10"
	}
	return "5"
}
