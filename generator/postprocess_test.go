package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSuggestionJSON = `{
  "titles": [
    "新しいアプリを作りました した話",
    "週末にアプリを公開した話",
    "初めてのリリースを経験した話",
    "個人開発で学んだことを整理した話",
    "アプリ作りで失敗した話"
  ],
  "lengthSuggestions": [
    {"length": 1500, "description": "1500字程度", "reason": "コンパクトに要点をまとめる"},
    {"length": 2000, "description": "2000字程度", "reason": "標準的な長さ"},
    {"length": 3000, "description": "3000字程度", "reason": "詳細に展開"},
    {"length": 5000, "description": "5000字程度", "reason": "ボリューミーに展開"}
  ]
}`

func TestParseSuggestionsValid(t *testing.T) {
	set, err := ParseSuggestions(validSuggestionJSON)
	require.NoError(t, err)
	assert.Len(t, set.Titles, 5)
	require.Len(t, set.LengthSuggestions, 4)
	assert.Equal(t, "週末にアプリを公開した話", set.Titles[1])
	assert.Equal(t, 2000, set.LengthSuggestions[1].Length)
	assert.Equal(t, "2000字程度", set.LengthSuggestions[1].Label)
	assert.Equal(t, "標準的な長さ", set.LengthSuggestions[1].Rationale)
}

func TestParseSuggestionsStripsCodeFence(t *testing.T) {
	set, err := ParseSuggestions("```json\n" + validSuggestionJSON + "\n```")
	require.NoError(t, err)
	assert.Len(t, set.Titles, 5)
}

func TestParseSuggestionsRejects(t *testing.T) {
	cases := map[string]string{
		"empty":           "   ",
		"not json":        "タイトル案は以下の通りです",
		"missing titles":  `{"lengthSuggestions": []}`,
		"missing lengths": `{"titles": ["a した話","b した話","c した話","d した話","e した話"]}`,
		"too few titles": `{"titles": ["a"], "lengthSuggestions": [
			{"length": 1500, "description": "x", "reason": "y"},
			{"length": 2000, "description": "x", "reason": "y"},
			{"length": 3000, "description": "x", "reason": "y"},
			{"length": 5000, "description": "x", "reason": "y"}]}`,
		"duplicate titles": `{"titles": ["a","a","b","c","d"], "lengthSuggestions": [
			{"length": 1500, "description": "x", "reason": "y"},
			{"length": 2000, "description": "x", "reason": "y"},
			{"length": 3000, "description": "x", "reason": "y"},
			{"length": 5000, "description": "x", "reason": "y"}]}`,
		"blank title": `{"titles": ["a","  ","b","c","d"], "lengthSuggestions": [
			{"length": 1500, "description": "x", "reason": "y"},
			{"length": 2000, "description": "x", "reason": "y"},
			{"length": 3000, "description": "x", "reason": "y"},
			{"length": 5000, "description": "x", "reason": "y"}]}`,
		"zero length": `{"titles": ["a","b","c","d","e"], "lengthSuggestions": [
			{"length": 0, "description": "x", "reason": "y"},
			{"length": 2000, "description": "x", "reason": "y"},
			{"length": 3000, "description": "x", "reason": "y"},
			{"length": 5000, "description": "x", "reason": "y"}]}`,
		"three lengths": `{"titles": ["a","b","c","d","e"], "lengthSuggestions": [
			{"length": 1500, "description": "x", "reason": "y"},
			{"length": 2000, "description": "x", "reason": "y"},
			{"length": 3000, "description": "x", "reason": "y"}]}`,
		"string length": `{"titles": ["a","b","c","d","e"], "lengthSuggestions": [
			{"length": "1500", "description": "x", "reason": "y"},
			{"length": 2000, "description": "x", "reason": "y"},
			{"length": 3000, "description": "x", "reason": "y"},
			{"length": 5000, "description": "x", "reason": "y"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			set, err := ParseSuggestions(raw)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindParse), "got %v", err)
			assert.Empty(t, set.Titles)
			assert.Empty(t, set.LengthSuggestions)
		})
	}
}

func TestSuggestionJSONSchemaIsClosed(t *testing.T) {
	s := SuggestionJSONSchema()
	assert.Empty(t, s.Version)
	assert.Equal(t, "object", s.Type)
	assert.ElementsMatch(t, []string{"titles", "lengthSuggestions"}, s.Required)
}
