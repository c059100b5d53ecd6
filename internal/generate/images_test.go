package generate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

// fakeImageGen はプロンプトごとの応答を差し替え可能な ImageGenerator です。
type fakeImageGen struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, req ImageRequest) ([]byte, error)
}

func (f *fakeImageGen) GenerateImage(_ context.Context, req ImageRequest) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call, req)
}

func testStyle() domain.StyleDefinition {
	return domain.StyleDefinition{
		ID:          "test-style",
		AspectRatio: "16:9",
		Sections: map[string]string{
			"base":    "base style",
			"content": "{{.Content}}",
		},
	}
}

func testPlan(n int) domain.SlidePlan {
	plan := domain.SlidePlan{Title: "T"}
	for i := 1; i <= n; i++ {
		pt := domain.PageTypeContent
		if i == 1 {
			pt = domain.PageTypeCover
		}
		plan.Slides = append(plan.Slides, domain.Slide{Number: i, PageType: pt, Content: "content"})
	}
	return plan
}

func newTestManager(t *testing.T) *output.Manager {
	t.Helper()
	m, _, err := output.Begin(t.TempDir(), "run", "plan-hash", "test-style", domain.Resolution2K)
	require.NoError(t, err)
	return m
}

func TestImageStage_AllSucceed(t *testing.T) {
	out := newTestManager(t)
	gen := &fakeImageGen{fn: func(_ int, _ ImageRequest) ([]byte, error) {
		return []byte("png"), nil
	}}
	stage := NewImageStage(gen, out, 2, 3)

	require.NoError(t, stage.Run(context.Background(), testPlan(4), testStyle(), domain.Resolution2K))

	manifest := out.Manifest()
	require.Len(t, manifest.Slides, 4)
	for _, e := range manifest.Slides {
		assert.Equal(t, domain.JobSucceeded, e.Status)
		assert.FileExists(t, e.AssetPath)
	}
}

func TestImageStage_TransientRetriesThenSucceeds(t *testing.T) {
	out := newTestManager(t)
	var attempts atomic.Int32
	gen := &fakeImageGen{fn: func(_ int, _ ImageRequest) ([]byte, error) {
		if attempts.Add(1) <= 2 {
			return nil, domain.NewTransientError("image", errors.New("rate limited"))
		}
		return []byte("png"), nil
	}}
	stage := NewImageStage(gen, out, 1, 3)

	require.NoError(t, stage.Run(context.Background(), testPlan(1), testStyle(), domain.Resolution2K))

	manifest := out.Manifest()
	entry, ok := manifest.FindSlide(1)
	require.True(t, ok)
	assert.Equal(t, domain.JobSucceeded, entry.Status)
	assert.Equal(t, 2, entry.Retries)
}

func TestImageStage_TransientExhaustionFailsJobOnly(t *testing.T) {
	out := newTestManager(t)
	gen := &fakeImageGen{fn: func(_ int, req ImageRequest) ([]byte, error) {
		// 2枚目のスライドだけ常に失敗させる。
		if req.Prompt == "base style\n\nslide-two" {
			return nil, domain.NewTransientError("image", errors.New("overloaded"))
		}
		return []byte("png"), nil
	}}

	plan := testPlan(2)
	plan.Slides[1].Content = "slide-two"
	stage := NewImageStage(gen, out, 1, 2)

	require.NoError(t, stage.Run(context.Background(), plan, testStyle(), domain.Resolution2K))

	manifest := out.Manifest()
	one, _ := manifest.FindSlide(1)
	two, _ := manifest.FindSlide(2)
	assert.Equal(t, domain.JobSucceeded, one.Status)
	assert.Equal(t, domain.JobFailed, two.Status)
	assert.Equal(t, 2, two.Retries)
	assert.Equal(t, []int{2}, manifest.FailedSlideNumbers())
}

func TestImageStage_FatalAbortsStage(t *testing.T) {
	out := newTestManager(t)
	gen := &fakeImageGen{fn: func(_ int, _ ImageRequest) ([]byte, error) {
		return nil, domain.NewFatalError("image", errors.New("invalid API key"))
	}}
	stage := NewImageStage(gen, out, 2, 3)

	err := stage.Run(context.Background(), testPlan(3), testStyle(), domain.Resolution2K)
	require.Error(t, err)
	assert.True(t, domain.IsFatalProvider(err))
}

func TestImageStage_SkipsUnchangedSucceededJobs(t *testing.T) {
	out := newTestManager(t)
	plan := testPlan(2)

	first := &fakeImageGen{fn: func(_ int, _ ImageRequest) ([]byte, error) {
		return []byte("png"), nil
	}}
	require.NoError(t, NewImageStage(first, out, 1, 1).Run(context.Background(), plan, testStyle(), domain.Resolution2K))

	// 再実行: 一度も呼ばれないこと。
	second := &fakeImageGen{fn: func(_ int, _ ImageRequest) ([]byte, error) {
		return nil, errors.New("must not be called")
	}}
	require.NoError(t, NewImageStage(second, out, 1, 1).Run(context.Background(), plan, testStyle(), domain.Resolution2K))
	assert.Equal(t, 0, second.calls)
}

func TestImageStage_RespectsConcurrencyLimit(t *testing.T) {
	out := newTestManager(t)

	var inFlight, peak atomic.Int32
	gen := &fakeImageGen{fn: func(_ int, _ ImageRequest) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return []byte("png"), nil
	}}

	const limit = 2
	stage := NewImageStage(gen, out, limit, 1)
	require.NoError(t, stage.Run(context.Background(), testPlan(8), testStyle(), domain.Resolution2K))
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}
