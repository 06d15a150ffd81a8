package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrendString(t *testing.T) {
	tr := Trend{Index: 0, Words: []string{"crypto", "bull", "market"}}
	assert.Equal(t, "Trend 1: crypto, bull, market", tr.String())

	tr = Trend{Index: 4, Words: nil}
	assert.Equal(t, "Trend 5: ", tr.String())
}

func TestLabelsKeepsOrder(t *testing.T) {
	labels := Labels([]Trend{
		{Index: 0, Words: []string{"a"}},
		{Index: 1, Words: []string{"b", "c"}},
	})
	assert.Equal(t, []string{"Trend 1: a", "Trend 2: b, c"}, labels)
}

func TestUserPreferences(t *testing.T) {
	t.Run("missing interests", func(t *testing.T) {
		assert.Nil(t, UserPreferences{}.Interests())
		var p UserPreferences
		assert.Nil(t, p.Interests())
	})

	t.Run("clone is independent", func(t *testing.T) {
		p := UserPreferences{InterestsKey: {"crypto", "memes"}}
		c := p.Clone()
		c[InterestsKey][0] = "changed"
		assert.Equal(t, "crypto", p.Interests()[0])
	})

	t.Run("clone of nil is empty", func(t *testing.T) {
		var p UserPreferences
		c := p.Clone()
		assert.NotNil(t, c)
		assert.Empty(t, c)
	})
}
