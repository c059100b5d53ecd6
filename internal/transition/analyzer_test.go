package transition

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/output"
)

type fakeDescriber struct {
	describeErr error
	loopErr     error
	calls       int
}

func (f *fakeDescriber) Describe(_ context.Context, _, _ []byte, _ string) (string, error) {
	f.calls++
	if f.describeErr != nil {
		return "", f.describeErr
	}
	return "described transition", nil
}

func (f *fakeDescriber) DescribeLoop(_ context.Context, _ []byte) (string, error) {
	f.calls++
	if f.loopErr != nil {
		return "", f.loopErr
	}
	return "described loop", nil
}

func threeSlidePlan() domain.SlidePlan {
	return domain.SlidePlan{
		Title: "T",
		Slides: []domain.Slide{
			{Number: 1, PageType: domain.PageTypeCover, Content: "T"},
			{Number: 2, PageType: domain.PageTypeContent, Content: "body"},
			{Number: 3, PageType: domain.PageTypeSummary, Content: "recap"},
		},
	}
}

func newAnalyzerFixture(t *testing.T, describer ImageDiffDescriber, seeded ...int) (*Analyzer, *output.Manager) {
	t.Helper()
	out, _, err := output.Begin(t.TempDir(), "run", "h", "s", domain.Resolution2K)
	require.NoError(t, err)
	for _, n := range seeded {
		p := out.SlideImagePath(n)
		require.NoError(t, out.WriteAsset(p, []byte("png")))
		require.NoError(t, out.CommitSlide(domain.ManifestEntry{
			Key: domain.SlideKey(n), AssetPath: p, ContentHash: "h", Status: domain.JobSucceeded,
		}))
	}
	return NewAnalyzer(describer, out, 5*time.Second), out
}

func TestBuild_OnePromptPerAdjacentPair(t *testing.T) {
	a, out := newAnalyzerFixture(t, &fakeDescriber{}, 1, 2, 3)

	tp, err := a.Build(context.Background(), threeSlidePlan())
	require.NoError(t, err)

	require.NotNil(t, tp.Preview)
	assert.Equal(t, "images/slide-01.png", tp.Preview.SlidePath)
	assert.Equal(t, "described loop", tp.Preview.Prompt)

	require.Len(t, tp.Transitions, 2)
	assert.Equal(t, 1, tp.Transitions[0].FromSlide)
	assert.Equal(t, 2, tp.Transitions[0].ToSlide)
	assert.Equal(t, 2, tp.Transitions[1].FromSlide)
	assert.Equal(t, 3, tp.Transitions[1].ToSlide)
	for _, tr := range tp.Transitions {
		assert.Equal(t, "described transition", tr.Prompt)
		assert.Equal(t, 5.0, tr.DurationSeconds)
	}

	// transition_prompts.json として永続化されていること。
	data, err := os.ReadFile(filepath.Join(out.RunDir(), output.TransitionPromptsFileName))
	require.NoError(t, err)
	var persisted domain.TransitionPrompts
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted.Transitions, 2)
}

func TestBuild_DescriberFailureFallsBackToStatic(t *testing.T) {
	describer := &fakeDescriber{
		describeErr: errors.New("vision model unavailable"),
		loopErr:     errors.New("vision model unavailable"),
	}
	a, _ := newAnalyzerFixture(t, describer, 1, 2, 3)

	tp, err := a.Build(context.Background(), threeSlidePlan())
	require.NoError(t, err)

	assert.Contains(t, tp.Preview.Prompt, "loopable")
	for _, tr := range tp.Transitions {
		assert.Contains(t, tr.Prompt, "text stays perfectly sharp")
	}
}

func TestBuild_MissingSlideUsesStaticPromptWithoutDescriberCall(t *testing.T) {
	describer := &fakeDescriber{}
	// スライド2の画像が存在しない。
	a, _ := newAnalyzerFixture(t, describer, 1, 3)

	tp, err := a.Build(context.Background(), threeSlidePlan())
	require.NoError(t, err)

	// ペア仕様自体は N-1 本すべて出力されること。
	require.Len(t, tp.Transitions, 2)
	assert.Contains(t, tp.Transitions[0].Prompt, "text stays perfectly sharp")
	assert.Contains(t, tp.Transitions[1].Prompt, "text stays perfectly sharp")
	// 記述器はプレビュー(スライド1)の1回のみ呼ばれること。
	assert.Equal(t, 1, describer.calls)
}

func TestBuild_NilDescriberAlwaysStatic(t *testing.T) {
	a, _ := newAnalyzerFixture(t, nil, 1, 2, 3)

	tp, err := a.Build(context.Background(), threeSlidePlan())
	require.NoError(t, err)

	assert.Contains(t, tp.Preview.Prompt, "loopable")
	require.Len(t, tp.Transitions, 2)
}
