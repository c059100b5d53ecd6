package adapters

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"ap-ppt-video/internal/output"
)

// Publisher は実行成果物を外部ストレージへ公開する能力です。
type Publisher interface {
	PublishRun(ctx context.Context, runDir, runID string) (publicURL string, err error)
}

// GCSPublisher は go-remote-io 経由で成果物一式を GCS へミラーリングし、
// 最終動画の署名付きURLを返す Publisher 実装です。
type GCSPublisher struct {
	writer        remoteio.OutputWriter
	signer        remoteio.URLSigner
	bucket        string
	signURLExpiry time.Duration
}

func NewGCSPublisher(writer remoteio.OutputWriter, signer remoteio.URLSigner, bucket string, signURLExpiry time.Duration) *GCSPublisher {
	return &GCSPublisher{
		writer:        writer,
		signer:        signer,
		bucket:        bucket,
		signURLExpiry: signURLExpiry,
	}
}

// PublishRun は実行ディレクトリ配下の全ファイルを gs://<bucket>/<runID>/ へ
// アップロードします。最終動画が存在する場合はその署名付きURLを返します。
func (p *GCSPublisher) PublishRun(ctx context.Context, runDir, runID string) (string, error) {
	var uploaded int
	err := filepath.WalkDir(runDir, func(localPath string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(runDir, localPath)
		if err != nil {
			return err
		}

		f, err := os.Open(localPath)
		if err != nil {
			return fmt.Errorf("成果物のオープンに失敗しました: %w", err)
		}
		defer f.Close()

		gcsPath := fmt.Sprintf("gs://%s/%s/%s", p.bucket, runID, filepath.ToSlash(rel))
		if err := p.writer.Write(ctx, gcsPath, f, contentTypeOf(localPath)); err != nil {
			return fmt.Errorf("GCSへのアップロードに失敗しました (%s): %w", gcsPath, err)
		}
		uploaded++
		return nil
	})
	if err != nil {
		return "", err
	}
	slog.Info("Run artifacts mirrored to GCS", "run_id", runID, "bucket", p.bucket, "files", uploaded)

	videoPath := fmt.Sprintf("gs://%s/%s/%s", p.bucket, runID, output.ComposedVideoFileName)
	if _, err := os.Stat(filepath.Join(runDir, output.ComposedVideoFileName)); err != nil {
		return "", nil
	}
	url, err := p.signer.GenerateSignedURL(ctx, videoPath, http.MethodGet, p.signURLExpiry)
	if err != nil {
		return "", fmt.Errorf("署名付きURLの生成に失敗しました: %w", err)
	}
	return url, nil
}

func contentTypeOf(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
