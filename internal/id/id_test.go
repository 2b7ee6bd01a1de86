package id

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	id, err := Generate("run")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "run-"))
	assert.Len(t, id, len("run-")+21)
}

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for range 1000 {
		id := MustGenerate("test")
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}
	assert.Len(t, ids, 1000)
}

func TestTimestamped_Format(t *testing.T) {
	now := time.UnixMilli(1760659200123)
	pattern := regexp.MustCompile(`^label_1760659200123_[0-9a-z]{9}$`)

	id, err := Timestamped("label", now)
	require.NoError(t, err)
	assert.Regexp(t, pattern, id)
}

func TestTimestamped_SameInstantStillUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for range 500 {
		id, err := Note(now)
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestKindHelpers(t *testing.T) {
	now := time.Now()

	l, err := Label(now)
	require.NoError(t, err)
	n, err := Note(now)
	require.NoError(t, err)
	m, err := Template(now)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(l, "label_"))
	assert.True(t, strings.HasPrefix(n, "note_"))
	assert.True(t, strings.HasPrefix(m, "template_"))
}

func BenchmarkTimestamped(b *testing.B) {
	now := time.Now()
	for b.Loop() {
		_, _ = Timestamped("label", now)
	}
}
