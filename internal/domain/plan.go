package domain

import "encoding/json"

// PageType は1枚のスライドが担うレイアウト種別を表します。
type PageType string

const (
	PageTypeCover   PageType = "cover"
	PageTypeContent PageType = "content"
	PageTypeData    PageType = "data"
	PageTypeSummary PageType = "summary"
)

// Resolution は画像生成の解像度プリセットです。(2K / 4K)
type Resolution string

const (
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

// Slide は生成計画上の1枚のスライドです。
type Slide struct {
	Number   int      `json:"slide_number"`
	PageType PageType `json:"page_type"`
	Content  string   `json:"content"`
}

// SlidePlan は1回の実行で生成するスライドの順序付き計画です。
// PlanBuilder が一度だけ生成し、以降のステージは読み取り専用で共有します。
// 不変条件: Slides[i].Number は 1..N の連番であること。
type SlidePlan struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// TotalSlides は計画に含まれるスライド枚数を返します。
func (p SlidePlan) TotalSlides() int {
	return len(p.Slides)
}

// slidePlanJSON は slides_plan.json の永続化フォーマットです。
// total_slides はプレイヤー側の契約なので、常に再計算して書き出します。
type slidePlanJSON struct {
	Title       string  `json:"title"`
	TotalSlides int     `json:"total_slides"`
	Slides      []Slide `json:"slides"`
}

// MarshalJSON は slides_plan.json の契約フォーマットで書き出します。
func (p SlidePlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(slidePlanJSON{
		Title:       p.Title,
		TotalSlides: len(p.Slides),
		Slides:      p.Slides,
	})
}

// UnmarshalJSON は slides_plan.json を読み込みます。total_slides は無視して
// slides の実数を信頼します。
func (p *SlidePlan) UnmarshalJSON(data []byte) error {
	var raw slidePlanJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Title = raw.Title
	p.Slides = raw.Slides
	return nil
}

// StyleDefinition は1回の実行で共有される読み取り専用のスタイル定義です。
type StyleDefinition struct {
	ID             string
	NegativePrompt string
	AspectRatio    string
	// Sections はページ種別ごとのプロンプトテンプレート本体です。
	// "base" セクションは全ページ共通の前置きとして使用します。
	Sections map[string]string
}
