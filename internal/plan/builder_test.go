package plan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ap-ppt-video/internal/domain"
)

func docWithSections(title string, n int) string {
	var sb strings.Builder
	sb.WriteString("# " + title + "\n\n")
	for i := 1; i <= n; i++ {
		sb.WriteString(fmt.Sprintf("## Section %d\n", i))
		sb.WriteString(fmt.Sprintf("Body text for section %d.\n\n", i))
	}
	return sb.String()
}

func TestBuild_TooFewSections(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(docWithSections("Quarterly Report", 3), "5")

	var planErr *domain.PlanError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, 3, planErr.Sections)
	assert.Equal(t, 5, planErr.Minimum)
}

func TestBuild_CoverFirstSummaryLast(t *testing.T) {
	b := NewBuilder()

	p, err := b.Build(docWithSections("Quarterly Report", 5), "5")
	require.NoError(t, err)

	require.Len(t, p.Slides, 5)
	assert.Equal(t, domain.PageTypeCover, p.Slides[0].PageType)
	assert.Equal(t, "Quarterly Report", p.Slides[0].Content)
	assert.Equal(t, domain.PageTypeSummary, p.Slides[len(p.Slides)-1].PageType)
	assert.Contains(t, p.Slides[len(p.Slides)-1].Content, "Section 1")
}

func TestBuild_OrdinalsAreContiguous(t *testing.T) {
	b := NewBuilder()

	cases := []struct {
		bucket   string
		sections int
		want     int
	}{
		{"5", 8, 5},
		{"5-10", 5, 5},
		{"5-10", 8, 8},
		{"5-10", 30, 10},
		{"10-15", 12, 12},
		{"20-25", 40, 25},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s/%d", tc.bucket, tc.sections), func(t *testing.T) {
			p, err := b.Build(docWithSections("T", tc.sections), tc.bucket)
			require.NoError(t, err)
			require.Len(t, p.Slides, tc.want)
			for i, s := range p.Slides {
				assert.Equal(t, i+1, s.Number)
			}
		})
	}
}

func TestBuild_DataPageAllocation(t *testing.T) {
	b := NewBuilder()

	p, err := b.Build(docWithSections("T", 10), "5-10")
	require.NoError(t, err)

	dataCount := 0
	for _, s := range p.Slides {
		if s.PageType == domain.PageTypeData {
			dataCount++
		}
	}
	assert.Equal(t, 2, dataCount)
	// 表紙とサマリは data にならないこと。
	assert.Equal(t, domain.PageTypeCover, p.Slides[0].PageType)
	assert.Equal(t, domain.PageTypeSummary, p.Slides[len(p.Slides)-1].PageType)
}

func TestBuild_PlainTextFallsBackToParagraphs(t *testing.T) {
	b := NewBuilder()

	var sb strings.Builder
	for i := 1; i <= 6; i++ {
		sb.WriteString(fmt.Sprintf("Topic %d\nDetails about topic %d.\n\n", i, i))
	}

	p, err := b.Build(sb.String(), "5-10")
	require.NoError(t, err)
	assert.Equal(t, "Topic 1", p.Title)
	assert.Len(t, p.Slides, 6)
}

func TestBuild_UnknownBucket(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(docWithSections("T", 10), "lots")

	var planErr *domain.PlanError
	require.ErrorAs(t, err, &planErr)
}

func TestParseBucket_EnDashAccepted(t *testing.T) {
	spec, err := parseBucket("5–10")
	require.NoError(t, err)
	assert.Equal(t, 5, spec.min)
	assert.Equal(t, 10, spec.max)
}

func TestBuild_PlanJSONShape(t *testing.T) {
	b := NewBuilder()

	p, err := b.Build(docWithSections("Shape Check", 5), "5")
	require.NoError(t, err)

	data, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_slides":5`)
	assert.Contains(t, string(data), `"page_type":"cover"`)
}
