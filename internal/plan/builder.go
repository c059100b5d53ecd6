package plan

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"ap-ppt-video/internal/domain"
)

// bucketSpec は要求スライド枚数帯1つ分の割り当て定義です。
type bucketSpec struct {
	min, max int
	// dataPages は本文スライドのうち data ページに割り当てる枚数です。
	dataPages int
}

// bucketTable は認識可能な枚数帯ごとの固定割り当て表です。
// 表紙は常に先頭、サマリは常に末尾で、残りを content/data に配分します。
var bucketTable = map[string]bucketSpec{
	"5":     {min: 5, max: 5, dataPages: 1},
	"5-10":  {min: 5, max: 10, dataPages: 2},
	"10-15": {min: 10, max: 15, dataPages: 3},
	"20-25": {min: 20, max: 25, dataPages: 5},
}

var bucketRangePattern = regexp.MustCompile(`^(\d+)\s*[-–]\s*(\d+)$`)

// maxSectionChars 1スライドに流し込む本文の上限。超過分は切り詰めます。
const maxSectionChars = 400

// Builder はドキュメントと枚数帯から SlidePlan を構築します。
// 副作用のない純粋な変換で、計画は一度構築したら以降不変です。
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build はドキュメント本文を解析し、枚数帯に合致する計画を返します。
// 抽出できたセクション数が帯の下限に満たない場合は PlanError を返します。
func (b *Builder) Build(document, bucket string) (domain.SlidePlan, error) {
	spec, err := parseBucket(bucket)
	if err != nil {
		return domain.SlidePlan{}, err
	}

	title, sections := extractSections(document)
	if len(sections) < spec.min {
		return domain.SlidePlan{}, &domain.PlanError{
			Reason:   "document yields too few extractable sections for the requested bucket",
			Sections: len(sections),
			Minimum:  spec.min,
		}
	}

	total := clamp(len(sections), spec.min, spec.max)
	bodyCount := total - 2
	dataIdx := dataPositions(bodyCount, spec.dataPages)

	slog.Info("Slide plan built",
		"title", title,
		"bucket", bucket,
		"sections", len(sections),
		"total_slides", total,
	)

	slides := make([]domain.Slide, 0, total)
	slides = append(slides, domain.Slide{
		Number:   1,
		PageType: domain.PageTypeCover,
		Content:  title,
	})

	for i := 0; i < bodyCount; i++ {
		pageType := domain.PageTypeContent
		if dataIdx[i] {
			pageType = domain.PageTypeData
		}
		slides = append(slides, domain.Slide{
			Number:   i + 2,
			PageType: pageType,
			Content:  sections[i].render(),
		})
	}

	slides = append(slides, domain.Slide{
		Number:   total,
		PageType: domain.PageTypeSummary,
		Content:  summaryContent(title, sections),
	})

	return domain.SlidePlan{Title: title, Slides: slides}, nil
}

// parseBucket は "5" や "5-10" 形式の枚数帯を解決します。
// 割り当て表にない範囲表記も min/max として受理します。
func parseBucket(bucket string) (bucketSpec, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(bucket), "–", "-")
	if spec, ok := bucketTable[normalized]; ok {
		return spec, nil
	}

	if m := bucketRangePattern.FindStringSubmatch(normalized); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo >= 3 && hi >= lo {
			return bucketSpec{min: lo, max: hi, dataPages: (lo + 4) / 5}, nil
		}
	}
	if n, err := strconv.Atoi(normalized); err == nil && n >= 3 {
		return bucketSpec{min: n, max: n, dataPages: (n + 4) / 5}, nil
	}

	return bucketSpec{}, &domain.PlanError{Reason: fmt.Sprintf("unrecognized slide bucket %q", bucket)}
}

// section は抽出した見出しと本文の組です。
type section struct {
	heading string
	body    string
}

func (s section) render() string {
	body := strings.TrimSpace(s.body)
	if len(body) > maxSectionChars {
		body = body[:maxSectionChars] + "…"
	}
	if body == "" {
		return s.heading
	}
	return s.heading + "\n" + body
}

// extractSections は Markdown の "## " 見出しでドキュメントを分割します。
// 見出しが無いプレーンテキストは空行区切りの段落をセクションとして扱います。
func extractSections(document string) (string, []section) {
	lines := strings.Split(document, "\n")

	title := ""
	var sections []section
	var current *section

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# ") && title == "":
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		case strings.HasPrefix(trimmed, "## "):
			sections = append(sections, section{heading: strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))})
			current = &sections[len(sections)-1]
		case current != nil:
			current.body += line + "\n"
		}
	}

	if len(sections) == 0 {
		sections = paragraphSections(document)
	}
	if title == "" {
		if len(sections) > 0 {
			title = sections[0].heading
		} else {
			title = "Untitled Presentation"
		}
	}
	return title, sections
}

// paragraphSections は見出しを持たないドキュメント向けのフォールバックです。
func paragraphSections(document string) []section {
	var sections []section
	for _, block := range strings.Split(document, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		heading := block
		body := ""
		if idx := strings.IndexByte(block, '\n'); idx > 0 {
			heading = strings.TrimSpace(block[:idx])
			body = block[idx+1:]
		}
		sections = append(sections, section{heading: heading, body: body})
	}
	return sections
}

// dataPositions は本文スライドの中で data ページとする位置を等間隔に選びます。
func dataPositions(bodyCount, dataPages int) map[int]bool {
	positions := make(map[int]bool, dataPages)
	if bodyCount <= 0 || dataPages <= 0 {
		return positions
	}
	if dataPages > bodyCount {
		dataPages = bodyCount
	}
	for k := 1; k <= dataPages; k++ {
		idx := k*bodyCount/(dataPages+1)
		if idx >= bodyCount {
			idx = bodyCount - 1
		}
		for positions[idx] && idx+1 < bodyCount {
			idx++
		}
		positions[idx] = true
	}
	return positions
}

func summaryContent(title string, sections []section) string {
	var sb strings.Builder
	sb.WriteString("Summary: " + title + "\n")
	for _, s := range sections {
		sb.WriteString("- " + s.heading + "\n")
	}
	return strings.TrimSpace(sb.String())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
