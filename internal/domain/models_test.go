package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsMarshalWithSnakeCaseKeys(t *testing.T) {
	for _, v := range []any{ScoreRecord{}, Result{}, RecheckRequest{}, PaymentRecord{}, AnomalyAssessment{}} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)

		var keys map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &keys))
		for key := range keys {
			assert.Equal(t, strings.ToLower(key), key, "%T marshals key %q", v, key)
		}
	}
}
