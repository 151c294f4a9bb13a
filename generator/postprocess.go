package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

const parseFailureMessage = "AIからの提案を解析できませんでした。"

var validate = validator.New()

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// ParseSuggestions 校验模型返回的 JSON 文本并转换为 SuggestionSet。
// 任何结构或内容问题都返回 ParseError，不会返回部分结果。
func ParseSuggestions(raw string) (SuggestionSet, error) {
	text := stripFence(strings.TrimSpace(raw))
	if text == "" {
		return SuggestionSet{}, NewParseError(parseFailureMessage, errors.New("model returned empty response"))
	}

	schema, err := compiledSuggestionSchema()
	if err != nil {
		return SuggestionSet{}, NewParseError(parseFailureMessage, fmt.Errorf("compile schema: %w", err))
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		// gojsonschema reports malformed JSON here.
		return SuggestionSet{}, NewParseError(parseFailureMessage, err)
	}
	if !result.Valid() {
		return SuggestionSet{}, NewParseError(parseFailureMessage, schemaErrors(result.Errors()))
	}

	var set SuggestionSet
	if err := json.Unmarshal([]byte(text), &set); err != nil {
		return SuggestionSet{}, NewParseError(parseFailureMessage, err)
	}
	normalize(&set)
	if err := validate.Struct(set); err != nil {
		return SuggestionSet{}, NewParseError(parseFailureMessage, err)
	}
	return set, nil
}

func stripFence(s string) string {
	if m := fenceRe.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

func normalize(set *SuggestionSet) {
	for i, t := range set.Titles {
		set.Titles[i] = strings.TrimSpace(t)
	}
	for i := range set.LengthSuggestions {
		ls := &set.LengthSuggestions[i]
		ls.Label = strings.TrimSpace(ls.Label)
		ls.Rationale = strings.TrimSpace(ls.Rationale)
	}
}

func schemaErrors(errs []gojsonschema.ResultError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
}
