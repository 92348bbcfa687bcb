package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelsFallbackOrder(t *testing.T) {
	assert.Equal(t, []Level{LevelRequest, LevelMemory, LevelDatabase}, Levels())
}

func TestLevelDriverRequired(t *testing.T) {
	assert.False(t, LevelRequest.DriverRequired())
	assert.True(t, LevelMemory.DriverRequired())
	assert.True(t, LevelDatabase.DriverRequired())
}

func TestLevelPersistence(t *testing.T) {
	assert.False(t, LevelRequest.Persistent())
	assert.True(t, LevelMemory.Persistent())
	assert.True(t, LevelDatabase.Persistent())
}

func TestParseLevel(t *testing.T) {
	for _, l := range Levels() {
		parsed, err := ParseLevel(l.String())
		assert.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	_, err := ParseLevel("disk")
	assert.Error(t, err)
}
