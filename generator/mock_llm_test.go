package generator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLLMSuggest(t *testing.T) {
	set, err := MockLLM{}.Suggest(context.Background(), "今日は新しいアプリを作りました。")
	require.NoError(t, err)
	require.Len(t, set.Titles, 5)
	for _, title := range set.Titles {
		assert.True(t, strings.HasSuffix(title, "した話"), title)
	}
	lengths := make([]int, 0, len(set.LengthSuggestions))
	for _, ls := range set.LengthSuggestions {
		lengths = append(lengths, ls.Length)
	}
	assert.Equal(t, []int{1500, 2000, 3000, 5000}, lengths)
	require.NoError(t, validate.Struct(set))
}

func TestMockChatStreamsWholeArticle(t *testing.T) {
	sess, err := MockLLM{}.NewChat(context.Background(), ArticleSystemPrompt)
	require.NoError(t, err)

	n := 0
	var sb strings.Builder
	for frag, err := range sess.Send(context.Background(), "x") {
		require.NoError(t, err)
		n++
		sb.WriteString(frag)
	}
	assert.Equal(t, MockArticle, sb.String())
	assert.Equal(t, len([]rune(MockArticle)), n)
}

func TestMockChatStopsOnCancel(t *testing.T) {
	sess, err := MockLLM{Delay: time.Millisecond}.NewChat(context.Background(), "")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	var gotErr error
	n := 0
	for _, err := range sess.Send(ctx, "x") {
		if err != nil {
			gotErr = err
			break
		}
		n++
		if n == 3 {
			cancel()
		}
	}
	require.Error(t, gotErr)
	assert.True(t, IsKind(gotErr, KindService))
	assert.Less(t, n, len([]rune(MockArticle)))
}
