package adapters

import (
	"context"
	"log/slog"
	"sync"

	"ap-ppt-video/internal/domain"
)

// GenerateTaskHandler はワーカーと同じ処理をプロセス内で実行する関数です。
type GenerateTaskHandler func(ctx context.Context, payload domain.GenerateTaskPayload)

// LocalTaskAdapter は Cloud Tasks を使わないローカル実行向けの TaskAdapter です。
// GCP プロジェクトが設定されていない環境では、タスクを goroutine として
// プロセス内で即時実行します。
type LocalTaskAdapter struct {
	handler GenerateTaskHandler
	wg      sync.WaitGroup
}

func NewLocalTaskAdapter(handler GenerateTaskHandler) *LocalTaskAdapter {
	return &LocalTaskAdapter{handler: handler}
}

// EnqueueGenerateTask はタスクをバックグラウンド goroutine で実行します。
// リクエスト側のコンテキストに縛られないよう、独立したコンテキストを使います。
func (a *LocalTaskAdapter) EnqueueGenerateTask(_ context.Context, payload domain.GenerateTaskPayload) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		slog.Info("Executing generate task in-process", "run_id", payload.RunID)
		a.handler(context.Background(), payload)
	}()
	return nil
}

// Close は実行中のタスクが完了するまで待機します。
func (a *LocalTaskAdapter) Close() error {
	a.wg.Wait()
	return nil
}
