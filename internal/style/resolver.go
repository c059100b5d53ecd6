package style

import (
	"fmt"
	"os"
	"path"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"ap-ppt-video/internal/domain"
)

// frontmatter はスタイル定義ファイル先頭の YAML メタデータです。
type frontmatter struct {
	ID             string `yaml:"id"`
	AspectRatio    string `yaml:"aspect_ratio"`
	NegativePrompt string `yaml:"negative_prompt"`
}

// Resolver はスタイルIDをディスク上の定義ファイルに解決します。
// 定義ファイルは <dir>/<id>.md に置かれた Markdown で、YAML frontmatter と
// ページ種別ごとの "## " セクションで構成されます。
type Resolver struct {
	dir string
}

func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve はスタイルIDまたは .md ファイルパスから定義を読み込みます。
// テンプレート構文の検証まで行い、不正な定義はこの時点で弾きます。
func (r *Resolver) Resolve(styleID string) (domain.StyleDefinition, error) {
	filePath := styleID
	if !strings.HasSuffix(styleID, ".md") {
		filePath = path.Join(r.dir, styleID+".md")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.StyleDefinition{}, &domain.StyleNotFoundError{StyleID: styleID}
		}
		return domain.StyleDefinition{}, fmt.Errorf("スタイル定義の読み込みに失敗しました: %w", err)
	}

	def, err := parseStyleFile(styleID, data)
	if err != nil {
		return domain.StyleDefinition{}, err
	}
	if err := validateTemplates(def); err != nil {
		return domain.StyleDefinition{}, err
	}
	return def, nil
}

// parseStyleFile は frontmatter と "## " 区切りのセクション本文を分離します。
func parseStyleFile(styleID string, data []byte) (domain.StyleDefinition, error) {
	content := string(data)

	def := domain.StyleDefinition{
		ID:          styleID,
		AspectRatio: "16:9",
		Sections:    map[string]string{},
	}

	if strings.HasPrefix(content, "---\n") {
		rest := content[4:]
		end := strings.Index(rest, "\n---")
		if end < 0 {
			return domain.StyleDefinition{}, &domain.TemplateError{StyleID: styleID, Missing: "frontmatter terminator"}
		}
		var fm frontmatter
		if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
			return domain.StyleDefinition{}, fmt.Errorf("frontmatter の解析に失敗しました: %w", err)
		}
		if fm.ID != "" {
			def.ID = fm.ID
		}
		if fm.AspectRatio != "" {
			def.AspectRatio = fm.AspectRatio
		}
		def.NegativePrompt = fm.NegativePrompt
		content = rest[end+len("\n---"):]
	}

	name := ""
	var body strings.Builder
	flush := func() {
		if name != "" {
			def.Sections[name] = strings.TrimSpace(body.String())
		}
		body.Reset()
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			flush()
			name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
			continue
		}
		body.WriteString(line + "\n")
	}
	flush()

	return def, nil
}

// validateTemplates は base と content セクションの存在、および
// 全セクションのテンプレート構文を検証します。
// content セクションはスライド本文の差し込み先なので、{{.Content}} の
// 参照を必須とします。
func validateTemplates(def domain.StyleDefinition) error {
	for _, required := range []string{"base", "content"} {
		if _, ok := def.Sections[required]; !ok {
			return &domain.TemplateError{StyleID: def.ID, Missing: "section " + required}
		}
	}
	for name, body := range def.Sections {
		if _, err := template.New(name).Parse(body); err != nil {
			return &domain.TemplateError{StyleID: def.ID, Missing: fmt.Sprintf("valid template in section %s: %v", name, err)}
		}
	}
	if !strings.Contains(def.Sections["content"], ".Content") {
		return &domain.TemplateError{StyleID: def.ID, Missing: "{{.Content}} placeholder in section content"}
	}
	return nil
}
