package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateJSONUsesNames(t *testing.T) {
	for s := Idle; s <= Error; s++ {
		b, err := json.Marshal(Snapshot{State: s})
		require.NoError(t, err)
		assert.Contains(t, string(b), `"state":"`+s.String()+`"`)

		var back Snapshot
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, s, back.State)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("finished")))
}
