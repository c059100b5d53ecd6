package generate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

// fakeVideoGen は投入ごとの状態遷移をスクリプト化できる VideoGenerator です。
type fakeVideoGen struct {
	mu      sync.Mutex
	submits int
	polls   map[string]int
	// states は投入回数(1始まり)ごとにポーリングで返す状態列です。
	states map[int][]VideoTaskState
}

func (f *fakeVideoGen) Submit(_ context.Context, _ VideoRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.polls == nil {
		f.polls = map[string]int{}
	}
	return fmt.Sprintf("task-%d", f.submits), nil
}

func (f *fakeVideoGen) Status(_ context.Context, taskID string) (VideoTaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int
	fmt.Sscanf(taskID, "task-%d", &n)
	seq := f.states[n]

	poll := f.polls[taskID]
	f.polls[taskID] = poll + 1

	state := VideoTaskProcessing
	if poll < len(seq) {
		state = seq[poll]
	} else if len(seq) > 0 {
		state = seq[len(seq)-1]
	}

	status := VideoTaskStatus{State: state}
	if state == VideoTaskSucceeded {
		status.VideoURL = "https://cdn.example.com/" + taskID + ".mp4"
	}
	if state == VideoTaskFailed {
		status.Message = "generation rejected"
	}
	return status, nil
}

func (f *fakeVideoGen) Download(_ context.Context, _ string) ([]byte, error) {
	return []byte("mp4"), nil
}

// seedSlides は動画ステージの前提となる succeeded 済みスライドを用意します。
func seedSlides(t *testing.T, out *output.Manager, numbers ...int) {
	t.Helper()
	for _, n := range numbers {
		p := out.SlideImagePath(n)
		require.NoError(t, out.WriteAsset(p, []byte("png")))
		require.NoError(t, out.CommitSlide(domain.ManifestEntry{
			Key:         domain.SlideKey(n),
			AssetPath:   p,
			ContentHash: "hash",
			Status:      domain.JobSucceeded,
		}))
	}
}

func testPrompts(pairs ...[2]int) domain.TransitionPrompts {
	tp := domain.TransitionPrompts{
		Preview: &domain.PreviewSpec{SlidePath: "images/slide-01.png", Prompt: "subtle motion"},
	}
	for _, p := range pairs {
		tp.Transitions = append(tp.Transitions, domain.TransitionSpec{
			FromSlide: p[0], ToSlide: p[1], Prompt: "morph", DurationSeconds: 5,
		})
	}
	return tp
}

func newVideoStage(gen VideoGenerator, out *output.Manager, maxAttempts int) *VideoStage {
	return NewVideoStage(gen, out, "text morphing", 3, maxAttempts, time.Millisecond, time.Second)
}

func TestVideoStage_SubmitPollDownload(t *testing.T) {
	out := newTestManager(t)
	seedSlides(t, out, 1, 2)

	gen := &fakeVideoGen{states: map[int][]VideoTaskState{
		1: {VideoTaskSubmitted, VideoTaskProcessing, VideoTaskSucceeded},
		2: {VideoTaskSucceeded},
	}}
	stage := newVideoStage(gen, out, 2)

	require.NoError(t, stage.Run(context.Background(), testPrompts([2]int{1, 2}), 5*time.Second))

	manifest := out.Manifest()
	require.Len(t, manifest.Segments, 2)
	assert.Equal(t, domain.PreviewKey, manifest.Segments[0].Key)
	for _, e := range manifest.Segments {
		assert.Equal(t, domain.JobSucceeded, e.Status)
		assert.FileExists(t, e.AssetPath)
	}
}

func TestVideoStage_ProviderFailureRetriedOnce(t *testing.T) {
	out := newTestManager(t)
	seedSlides(t, out, 1, 2)

	gen := &fakeVideoGen{states: map[int][]VideoTaskState{
		1: {VideoTaskFailed},
		2: {VideoTaskSucceeded},
	}}
	stage := newVideoStage(gen, out, 2)

	tp := testPrompts([2]int{1, 2})
	tp.Preview = nil
	require.NoError(t, stage.Run(context.Background(), tp, 5*time.Second))

	manifest := out.Manifest()
	entry, ok := manifest.FindSegment(domain.TransitionKey(1, 2))
	require.True(t, ok)
	assert.Equal(t, domain.JobSucceeded, entry.Status)
	assert.Equal(t, 1, entry.Retries)
	assert.Equal(t, 2, gen.submits)
}

func TestVideoStage_PollTimeoutIsTransient(t *testing.T) {
	out := newTestManager(t)
	seedSlides(t, out, 1, 2)

	gen := &fakeVideoGen{states: map[int][]VideoTaskState{}}
	stage := NewVideoStage(gen, out, "", 1, 1, time.Millisecond, 30*time.Millisecond)

	tp := testPrompts([2]int{1, 2})
	tp.Preview = nil
	require.NoError(t, stage.Run(context.Background(), tp, 5*time.Second))

	manifest := out.Manifest()
	entry, ok := manifest.FindSegment(domain.TransitionKey(1, 2))
	require.True(t, ok)
	assert.Equal(t, domain.JobFailed, entry.Status)
	assert.Contains(t, entry.Error, "did not complete")
}

func TestVideoStage_MissingSourceSlideFailsSegmentOnly(t *testing.T) {
	out := newTestManager(t)
	seedSlides(t, out, 1, 3)
	// スライド2は画像生成に失敗している。
	require.NoError(t, out.CommitSlide(domain.ManifestEntry{
		Key: domain.SlideKey(2), Status: domain.JobFailed, Error: "quota",
	}))

	gen := &fakeVideoGen{states: map[int][]VideoTaskState{
		1: {VideoTaskSucceeded},
		2: {VideoTaskSucceeded},
	}}
	stage := newVideoStage(gen, out, 1)

	tp := testPrompts([2]int{1, 2}, [2]int{2, 3})
	tp.Preview = nil
	require.NoError(t, stage.Run(context.Background(), tp, 5*time.Second))

	manifest := out.Manifest()
	for _, key := range []string{domain.TransitionKey(1, 2), domain.TransitionKey(2, 3)} {
		entry, ok := manifest.FindSegment(key)
		require.True(t, ok)
		assert.Equal(t, domain.JobFailed, entry.Status)
		assert.Contains(t, entry.Error, "slide 2")
	}
	// 欠けたソースに対してはプロバイダ呼び出しを行わないこと。
	assert.Equal(t, 0, gen.submits)
}

func TestVideoStage_SkipsUnchangedSucceededSegments(t *testing.T) {
	out := newTestManager(t)
	seedSlides(t, out, 1, 2)

	gen := &fakeVideoGen{states: map[int][]VideoTaskState{1: {VideoTaskSucceeded}}}
	stage := newVideoStage(gen, out, 1)

	tp := testPrompts()
	require.NoError(t, stage.Run(context.Background(), tp, 5*time.Second))
	require.Equal(t, 1, gen.submits)

	require.NoError(t, stage.Run(context.Background(), tp, 5*time.Second))
	assert.Equal(t, 1, gen.submits)
}
