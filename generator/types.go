package generator

// LengthSuggestion 是模型给出的一个目标字数选项。
type LengthSuggestion struct {
	Length    int    `json:"length" jsonschema:"description=提案する文字数" validate:"gt=0"`
	Label     string `json:"description" jsonschema:"description=文字数の説明（例：1500字程度）" validate:"required"`
	Rationale string `json:"reason" jsonschema:"description=この文字数を提案する理由" validate:"required"`
}

// SuggestionSet is the structured response of the suggestion call.
type SuggestionSet struct {
	Titles            []string           `json:"titles" jsonschema:"description=キャッチーでSEOに強いタイトル5つ。「〇〇した話」で終わる必要があります。" validate:"len=5,unique,dive,required"`
	LengthSuggestions []LengthSuggestion `json:"lengthSuggestions" jsonschema:"description=テープ起こしの内容に基づいて適切な文字数の提案" validate:"len=4,dive"`
}

// ArticleRequest 描述一次正文生成所需的用户选择。
type ArticleRequest struct {
	Title        string
	Length       int
	ReferenceURL string
	Transcript   string
}
