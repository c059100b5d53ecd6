package style

import (
	"fmt"
	"strings"
	"text/template"

	"ap-ppt-video/internal/domain"
)

// promptContext はプロンプトテンプレートに渡す変数群です。
type promptContext struct {
	Title       string
	Content     string
	SlideNumber int
	TotalSlides int
	Resolution  string
	AspectRatio string
}

// RenderPrompt はスライド1枚分の画像生成プロンプトを組み立てます。
// base セクションを前置きし、ページ種別に対応するセクションを続けます。
// 種別セクションが未定義の場合は content セクションにフォールバックします。
func RenderPrompt(def domain.StyleDefinition, slide domain.Slide, plan domain.SlidePlan, resolution domain.Resolution) (string, error) {
	section, ok := def.Sections[string(slide.PageType)]
	if !ok {
		section = def.Sections["content"]
	}

	ctx := promptContext{
		Title:       plan.Title,
		Content:     slide.Content,
		SlideNumber: slide.Number,
		TotalSlides: plan.TotalSlides(),
		Resolution:  string(resolution),
		AspectRatio: def.AspectRatio,
	}

	base, err := renderSection(def.ID, "base", def.Sections["base"], ctx)
	if err != nil {
		return "", err
	}
	body, err := renderSection(def.ID, string(slide.PageType), section, ctx)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(base + "\n\n" + body), nil
}

func renderSection(styleID, name, body string, ctx promptContext) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(body)
	if err != nil {
		return "", &domain.TemplateError{StyleID: styleID, Missing: fmt.Sprintf("valid template in section %s: %v", name, err)}
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, ctx); err != nil {
		return "", &domain.TemplateError{StyleID: styleID, Missing: fmt.Sprintf("renderable section %s: %v", name, err)}
	}
	return sb.String(), nil
}
