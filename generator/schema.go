package generator

import (
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"
)

// SuggestionJSONSchema reflects SuggestionSet into a self-contained JSON schema, the form
// accepted by OpenAI structured outputs.
func SuggestionJSONSchema() *jsonschema.Schema {
	r := jsonschema.Reflector{AllowAdditionalProperties: false, DoNotReference: true}
	s := r.Reflect(SuggestionSet{})
	s.Version = ""
	s.ID = ""
	return s
}

var compiledSuggestionSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(SuggestionJSONSchema()))
})

// geminiSuggestionSchema mirrors SuggestionSet in genai's schema dialect.
func geminiSuggestionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"titles": {
				Type:        genai.TypeArray,
				Description: "キャッチーでSEOに強いタイトル5つ。「〇〇した話」で終わる必要があります。",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
			"lengthSuggestions": {
				Type:        genai.TypeArray,
				Description: "テープ起こしの内容に基づいて適切な文字数の提案",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"length":      {Type: genai.TypeInteger, Description: "提案する文字数"},
						"description": {Type: genai.TypeString, Description: "文字数の説明（例：1500字程度）"},
						"reason":      {Type: genai.TypeString, Description: "この文字数を提案する理由"},
					},
					Required: []string{"length", "description", "reason"},
				},
			},
		},
		Required: []string{"titles", "lengthSuggestions"},
	}
}
