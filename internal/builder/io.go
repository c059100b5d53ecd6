package builder

import (
	"context"
	"fmt"

	"ap-ppt-video/internal/adapters"
	"ap-ppt-video/internal/config"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// RemoteIO は GCS ベースの I/O コンポーネント一式を保持します。
type RemoteIO struct {
	Factory remoteio.IOFactory
	Writer  remoteio.OutputWriter
	Signer  remoteio.URLSigner
}

// buildPublisher は GCS ミラーリングが有効な場合のみ Publisher を構築します。
// 出力バケットが未設定の場合は (nil, nil) を返し、ローカル出力のみになります。
func buildPublisher(ctx context.Context, cfg *config.Config) (*RemoteIO, adapters.Publisher, error) {
	if cfg.GCSOutputBucket == "" {
		return nil, nil, nil
	}

	factory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCS factory: %w", err)
	}
	w, err := factory.OutputWriter()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output writer: %w", err)
	}
	s, err := factory.URLSigner()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create URL signer: %w", err)
	}

	rio := &RemoteIO{Factory: factory, Writer: w, Signer: s}
	publisher := adapters.NewGCSPublisher(w, s, cfg.GCSOutputBucket, config.SignedURLExpiration)
	return rio, publisher, nil
}
