package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ap-ppt-video/internal/domain"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-notifier/pkg/factory"
	"github.com/shouni/go-notifier/pkg/slack"
)

// --- インターフェース定義 ---

type SlackNotifier interface {
	Notify(ctx context.Context, publicURL string, result domain.RunResult, req domain.NotificationRequest) error
	NotifyError(ctx context.Context, errDetail error, req domain.NotificationRequest) error
}

// --- 具象アダプター ---

type SlackAdapter struct {
	httpClient  httpkit.ClientInterface
	webhookURL  string
	slackClient *slack.Client
}

func NewSlackAdapter(httpClient httpkit.ClientInterface, webhookURL string) (*SlackAdapter, error) {
	if webhookURL == "" {
		return &SlackAdapter{webhookURL: webhookURL}, nil
	}
	client, err := factory.GetSlackClient(httpClient)
	if err != nil {
		return nil, fmt.Errorf("Slackクライアントの初期化に失敗したのだ: %w", err)
	}

	return &SlackAdapter{
		httpClient:  httpClient,
		webhookURL:  webhookURL,
		slackClient: client,
	}, nil
}

// Notify 実行完了時のSlack通知送信。部分成功の場合は失敗内訳も含めます。
func (a *SlackAdapter) Notify(ctx context.Context, publicURL string, result domain.RunResult, req domain.NotificationRequest) error {
	if a.slackClient == nil {
		slog.Info("Slackクライアントが初期化されていないため、通知をスキップします。", "run_id", result.RunID)
		return nil
	}

	icon := "🎬"
	title := fmt.Sprintf("%s プレゼン動画の生成が完了しました！", icon)
	if result.Status == domain.RunPartialSuccess {
		title = "⚠️ プレゼン動画の生成が部分的に完了しました"
	}

	content := a.buildSlackContent(publicURL, result, req)
	if err := a.slackClient.SendTextWithHeader(ctx, title, content); err != nil {
		return fmt.Errorf("Slackへの投稿に失敗しました: %w", err)
	}

	slog.Info("Slack に完了通知を送信しました。", "run_id", result.RunID)
	return nil
}

// NotifyError エラー詳細と実行メタデータを含むSlackエラー通知の送信。
func (a *SlackAdapter) NotifyError(ctx context.Context, errDetail error, req domain.NotificationRequest) error {
	if a.slackClient == nil {
		slog.Info("Slackクライアントが初期化されていないため、エラー通知をスキップします。", "error", errDetail)
		return nil
	}

	// Slackのmrkdwn形式では、アスタリスク(*)でテキストを囲むと太字として解釈されます。
	title := "❌ 処理中にエラーが発生しました"

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*タイトル:* `%s`\n", req.TargetTitle))
	sb.WriteString(fmt.Sprintf("*実行モード:* `%s`\n\n", req.ExecutionMode))

	// エラー詳細をコードブロックで囲むことで、可読性を向上させます。
	sb.WriteString("*エラー内容:*\n")
	sb.WriteString(fmt.Sprintf("```\n%v\n```\n", errDetail))

	if req.OutputCategory != "" && req.OutputCategory != domain.CategoryNotAvailable {
		sb.WriteString(fmt.Sprintf("\n📍 *カテゴリ:* `%s`", req.OutputCategory))
	}

	if err := a.slackClient.SendTextWithHeader(ctx, title, sb.String()); err != nil {
		return fmt.Errorf("Slackへのエラー通知に失敗しました: %w", err)
	}

	slog.Info("Slack にエラー通知を送信しました。", "error", errDetail)
	return nil
}

// buildSlackContent 実行結果と通知リクエストに基づき、Slack メッセージの内容を生成します。
func (a *SlackAdapter) buildSlackContent(publicURL string, result domain.RunResult, req domain.NotificationRequest) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**タイトル:** `%s`\n", req.TargetTitle))
	sb.WriteString(fmt.Sprintf("**実行モード:** `%s`\n", req.ExecutionMode))
	sb.WriteString(fmt.Sprintf("**実行ID:** `%s`\n\n", result.RunID))

	if publicURL != "" && publicURL != domain.CategoryNotAvailable {
		sb.WriteString(fmt.Sprintf("🌐 **動画:** <%s|ここから確認するのだ！>\n", publicURL))
	}
	sb.WriteString(fmt.Sprintf("📍 **出力先:** `%s`\n", result.OutputDir))

	if len(result.FailedSlides) > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ *生成に失敗したスライド:* `%v`\n", result.FailedSlides))
	}
	if len(result.FailedTransitions) > 0 {
		sb.WriteString(fmt.Sprintf("⚠️ *生成に失敗したトランジション:* `%s`\n", strings.Join(result.FailedTransitions, ", ")))
	}

	return sb.String()
}
