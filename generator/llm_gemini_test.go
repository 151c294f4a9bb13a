package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGeminiSuggestionSchemaMatchesStruct(t *testing.T) {
	s := geminiSuggestionSchema()
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"titles", "lengthSuggestions"}, s.Required)
	item := s.Properties["lengthSuggestions"].Items
	require.NotNil(t, item)
	assert.Equal(t, genai.TypeInteger, item.Properties["length"].Type)
	assert.ElementsMatch(t, []string{"length", "description", "reason"}, item.Required)
}

func TestResponseTextConcatenatesParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "今日"}, nil, {Text: "は"}}},
		}},
	}
	assert.Equal(t, "今日は", responseText(resp))
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGeminiLLMFromConfig(context.Background(), &LLMSettings{Model: "gemini-2.5-flash"})
	assert.Error(t, err)
	_, err = NewGeminiLLMFromConfig(context.Background(), nil)
	assert.Error(t, err)
}

func newTestGemini(t *testing.T, h http.HandlerFunc) *GeminiLLM {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	llm, err := NewGeminiLLMFromConfig(context.Background(), &LLMSettings{
		Provider: "gemini", Model: "gemini-2.5-flash", APIKey: "test", BaseURL: srv.URL,
	})
	require.NoError(t, err)
	return llm
}

// geminiReply wraps text as a generateContent response body.
func geminiReply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(b)
}

func TestGeminiSuggest(t *testing.T) {
	var raw string
	llm := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-2.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "test", r.Header.Get("x-goog-api-key"))
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, geminiReply(validSuggestionJSON))
	})

	set, err := llm.Suggest(context.Background(), "今日は新しいアプリを作りました。")
	require.NoError(t, err)
	assert.Len(t, set.Titles, 5)
	assert.Len(t, set.LengthSuggestions, 4)

	assert.Contains(t, raw, `"responseMimeType":"application/json"`)
	assert.Contains(t, raw, `"responseSchema"`)
	assert.Contains(t, raw, "今日は新しいアプリを作りました。")
}

func TestGeminiSuggestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{name: "server error", status: http.StatusInternalServerError,
			body: `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, kind: KindService},
		{name: "bad key", status: http.StatusUnauthorized,
			body: `{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`, kind: KindService},
		{name: "not json", status: http.StatusOK, kind: KindParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				if tt.body == "" {
					fmt.Fprint(w, geminiReply("タイトル案は以下の通りです"))
					return
				}
				fmt.Fprint(w, tt.body)
			})
			_, err := llm.Suggest(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestGeminiChatStreamsInOrder(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	llm := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":streamGenerateContent")
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"今日", "は", "新しい"} {
			fmt.Fprintf(w, "data: %s\n\n", geminiReply(frag))
		}
	})

	sess, err := llm.NewChat(context.Background(), ArticleSystemPrompt)
	require.NoError(t, err)

	var frags []string
	for frag, err := range sess.Send(context.Background(), "first") {
		require.NoError(t, err)
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"今日", "は", "新しい"}, frags)

	_, err = collect(t, sess.Send(context.Background(), "second"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	// the session keeps the earlier turn
	assert.Contains(t, bodies[1], "first")
	assert.Contains(t, bodies[1], "second")
}

func TestGeminiChatErrorIsLast(t *testing.T) {
	llm := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", geminiReply("前半"))
		fmt.Fprint(w, "data: {broken\n\n")
	})
	sess, err := llm.NewChat(context.Background(), ArticleSystemPrompt)
	require.NoError(t, err)

	var (
		frags []string
		errs  []error
	)
	for frag, err := range sess.Send(context.Background(), "x") {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		require.Empty(t, errs, "fragment after error")
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"前半"}, frags)
	require.Len(t, errs, 1)
	assert.True(t, IsKind(errs[0], KindService))
}
