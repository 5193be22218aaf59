package generative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/debate-api/models"
)

func TestDecodeJSON(t *testing.T) {
	var dto struct {
		Vote       string `json:"vote"`
		Confidence int    `json:"confidence"`
	}

	t.Run("bare object", func(t *testing.T) {
		err := decodeJSON(`{"vote": "A", "confidence": 8}`, &dto)
		require.NoError(t, err)
		assert.Equal(t, "A", dto.Vote)
		assert.Equal(t, 8, dto.Confidence)
	})

	t.Run("code fences", func(t *testing.T) {
		raw := "```json\n{\"vote\": \"B\", \"confidence\": 6}\n```"
		err := decodeJSON(raw, &dto)
		require.NoError(t, err)
		assert.Equal(t, "B", dto.Vote)
	})

	t.Run("surrounding prose", func(t *testing.T) {
		raw := `Here is my vote: {"vote": "A", "confidence": 9} I hope that helps.`
		err := decodeJSON(raw, &dto)
		require.NoError(t, err)
		assert.Equal(t, "A", dto.Vote)
		assert.Equal(t, 9, dto.Confidence)
	})

	t.Run("no object", func(t *testing.T) {
		err := decodeJSON("I vote for side A.", &dto)
		assert.Error(t, err)
	})

	t.Run("malformed object", func(t *testing.T) {
		err := decodeJSON(`{"vote": }`, &dto)
		assert.Error(t, err)
	})
}

func TestParseSide(t *testing.T) {
	cases := []struct {
		in   string
		want models.Side
		ok   bool
	}{
		{"A", models.SideA, true},
		{"B", models.SideB, true},
		{"a", models.SideA, true},
		{" b ", models.SideB, true},
		{"C", "", false},
		{"side A", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, err := parseSide(c.in)
		if c.ok {
			require.NoError(t, err, "parseSide(%q)", c.in)
			assert.Equal(t, c.want, got)
		} else {
			assert.Error(t, err, "parseSide(%q)", c.in)
		}
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 1, clampConfidence(-3))
	assert.Equal(t, 1, clampConfidence(0))
	assert.Equal(t, 5, clampConfidence(5))
	assert.Equal(t, 10, clampConfidence(10))
	assert.Equal(t, 10, clampConfidence(99))
}
