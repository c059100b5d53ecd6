package output

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ap-ppt-video/internal/domain"
)

func TestNewRunID_SafeDirectoryName(t *testing.T) {
	id := NewRunID("ビジネス戦略/2026: 下半期?")

	// タイムスタンプ + 8桁ハッシュの形式であること。
	assert.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}_[0-9a-f]{8}$`), id)
}

func TestBegin_FreshRun(t *testing.T) {
	base := t.TempDir()

	m, resumed, err := Begin(base, "run-a", "hash1", "gradient-glass", domain.Resolution2K)
	require.NoError(t, err)
	assert.False(t, resumed)

	assert.DirExists(t, m.ImagesDir())
	assert.DirExists(t, m.VideosDir())
	assert.FileExists(t, filepath.Join(m.RunDir(), ManifestFileName))
}

func TestBegin_ResumesCompatibleManifest(t *testing.T) {
	base := t.TempDir()

	m, _, err := Begin(base, "run-a", "hash1", "gradient-glass", domain.Resolution2K)
	require.NoError(t, err)
	require.NoError(t, m.CommitSlide(domain.ManifestEntry{
		Key:         domain.SlideKey(1),
		AssetPath:   m.SlideImagePath(1),
		ContentHash: "abc",
		Status:      domain.JobSucceeded,
	}))

	m2, resumed, err := Begin(base, "run-a", "hash1", "gradient-glass", domain.Resolution2K)
	require.NoError(t, err)
	assert.True(t, resumed)

	manifest := m2.Manifest()
	entry, ok := manifest.FindSlide(1)
	require.True(t, ok)
	assert.Equal(t, domain.JobSucceeded, entry.Status)
}

func TestBegin_RejectsIncompatibleManifest(t *testing.T) {
	base := t.TempDir()

	_, _, err := Begin(base, "run-a", "hash1", "gradient-glass", domain.Resolution2K)
	require.NoError(t, err)

	_, _, err = Begin(base, "run-a", "hash2", "gradient-glass", domain.Resolution2K)
	var cfgErr *domain.ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, _, err = Begin(base, "run-a", "hash1", "gradient-glass", domain.Resolution4K)
	require.ErrorAs(t, err, &cfgErr)
}

func TestCommitSegment_PreviewSortsFirst(t *testing.T) {
	base := t.TempDir()
	m, _, err := Begin(base, "run-a", "h", "s", domain.Resolution2K)
	require.NoError(t, err)

	require.NoError(t, m.CommitSegment(domain.ManifestEntry{Key: domain.TransitionKey(2, 3), Status: domain.JobSucceeded}))
	require.NoError(t, m.CommitSegment(domain.ManifestEntry{Key: domain.PreviewKey, Status: domain.JobSucceeded}))
	require.NoError(t, m.CommitSegment(domain.ManifestEntry{Key: domain.TransitionKey(1, 2), Status: domain.JobSucceeded}))

	got := m.Manifest()
	require.Len(t, got.Segments, 3)
	assert.Equal(t, domain.PreviewKey, got.Segments[0].Key)
	assert.Equal(t, "transition_01_to_02", got.Segments[1].Key)
	assert.Equal(t, "transition_02_to_03", got.Segments[2].Key)
}

func TestSavePlan_WritesContractFormat(t *testing.T) {
	base := t.TempDir()
	m, _, err := Begin(base, "run-a", "h", "s", domain.Resolution2K)
	require.NoError(t, err)

	plan := domain.SlidePlan{
		Title: "T",
		Slides: []domain.Slide{
			{Number: 1, PageType: domain.PageTypeCover, Content: "T"},
			{Number: 2, PageType: domain.PageTypeSummary, Content: "recap"},
		},
	}
	require.NoError(t, m.SavePlan(plan))

	data, err := os.ReadFile(filepath.Join(m.RunDir(), PlanFileName))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 2, raw["total_slides"])
}

func TestFinalize_StatusClassification(t *testing.T) {
	base := t.TempDir()

	t.Run("success", func(t *testing.T) {
		m, _, err := Begin(base, "run-s", "h", "s", domain.Resolution2K)
		require.NoError(t, err)
		require.NoError(t, m.CommitSlide(domain.ManifestEntry{Key: domain.SlideKey(1), Status: domain.JobSucceeded}))

		result := m.Finalize("out.mp4", nil)
		assert.Equal(t, domain.RunSuccess, result.Status)
	})

	t.Run("partial success reports failed keys", func(t *testing.T) {
		m, _, err := Begin(base, "run-p", "h", "s", domain.Resolution2K)
		require.NoError(t, err)
		require.NoError(t, m.CommitSlide(domain.ManifestEntry{Key: domain.SlideKey(2), Status: domain.JobFailed, Error: "quota"}))
		require.NoError(t, m.CommitSegment(domain.ManifestEntry{Key: domain.TransitionKey(1, 2), Status: domain.JobFailed}))

		result := m.Finalize("", nil)
		assert.Equal(t, domain.RunPartialSuccess, result.Status)
		assert.Equal(t, []int{2}, result.FailedSlides)
		assert.Equal(t, []string{"transition_01_to_02"}, result.FailedTransitions)
	})

	t.Run("fatal error wins", func(t *testing.T) {
		m, _, err := Begin(base, "run-f", "h", "s", domain.Resolution2K)
		require.NoError(t, err)

		result := m.Finalize("", errors.New("auth rejected"))
		assert.Equal(t, domain.RunFailed, result.Status)
		assert.Contains(t, result.Error, "auth rejected")
	})
}

func TestWriteAsset_Atomic(t *testing.T) {
	base := t.TempDir()
	m, _, err := Begin(base, "run-a", "h", "s", domain.Resolution2K)
	require.NoError(t, err)

	dst := m.SlideImagePath(1)
	require.NoError(t, m.WriteAsset(dst, []byte("png-bytes")))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	// 一時ファイルが残っていないこと。
	entries, err := os.ReadDir(m.ImagesDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
