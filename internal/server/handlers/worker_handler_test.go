package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ap-ppt-video/internal/domain"
)

type fakePipeline struct {
	result   domain.RunResult
	payloads []domain.GenerateTaskPayload
}

func (f *fakePipeline) Execute(_ context.Context, payload domain.GenerateTaskPayload) domain.RunResult {
	f.payloads = append(f.payloads, payload)
	return f.result
}

func postWorker(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tasks/generate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateTask_DropsUnusablePayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{"document": `},
		{"empty document", `{"document": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{}
			rec := postWorker(t, NewWorkerHandler(p).GenerateTask, tt.body)

			// 再試行しても成功しないペイロードは 200 で破棄します。
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, p.payloads)
		})
	}
}

func TestGenerateTask_ExecutesPipeline(t *testing.T) {
	p := &fakePipeline{result: domain.RunResult{RunID: "run-1", Status: domain.RunSuccess}}

	rec := postWorker(t, NewWorkerHandler(p).GenerateTask, `{"document":"# T\n\n## S\nbody","bucket":"5"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, p.payloads, 1)
	assert.Equal(t, "5", p.payloads[0].Bucket)
	assert.Contains(t, rec.Body.String(), "run-1")
}

func TestGenerateTask_FailedRunReturns500(t *testing.T) {
	p := &fakePipeline{result: domain.RunResult{RunID: "run-2", Status: domain.RunFailed, Error: "plan error"}}

	rec := postWorker(t, NewWorkerHandler(p).GenerateTask, `{"document":"doc"}`)

	// Cloud Tasks に再試行させるため、致命的失敗は 500 を返します。
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
