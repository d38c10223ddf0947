package strength

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	weak := Check("password")
	assert.Less(t, weak.Score, MinScore)
	assert.False(t, weak.Acceptable())
	assert.NotEmpty(t, weak.CrackTime)

	strong := Check("v7#Qm!2zLp@9xKr$Tw4")
	assert.Equal(t, 4, strong.Score)
	assert.True(t, strong.Acceptable())
	assert.Equal(t, "very strong", strong.Label())
	assert.Greater(t, strong.Entropy, weak.Entropy)
}

func TestCheck_Empty(t *testing.T) {
	r := Check("")
	assert.Equal(t, 0, r.Score)
	assert.False(t, r.Acceptable())
	assert.Equal(t, "very weak", r.Label())
}

func TestCheck_UserInputsLowerScore(t *testing.T) {
	plain := Check("bobsmith1987")
	withInputs := Check("bobsmith1987", "bob", "smith", "bobsmith")
	assert.LessOrEqual(t, withInputs.Entropy, plain.Entropy)
}
