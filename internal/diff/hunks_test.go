package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/precedent/internal/core"
)

const samplePatch = `diff --git a/user.go b/user.go
index 3b18e51..a9c2f04 100644
--- a/user.go
+++ b/user.go
@@ -10,4 +10,5 @@ func Load(id string) *User {
 	u := repo.Find(id)
-	return u
+	name := u.Name
+	return &User{Name: name}
 }
@@ -40 +41,2 @@
 // end
+// TODO: cache lookups
`

func TestParseHunks(t *testing.T) {
	hunks, err := ParseHunks(samplePatch)
	require.NoError(t, err)
	require.Len(t, hunks, 2)

	assert.Equal(t, 10, hunks[0].OldStart)
	assert.Equal(t, 4, hunks[0].OldLines)
	assert.Equal(t, 10, hunks[0].NewStart)
	assert.Equal(t, 5, hunks[0].NewLines)
	assert.Equal(t, " func Load(id string) *User {", hunks[0].Section)
	assert.Len(t, hunks[0].Lines, 5)

	assert.Equal(t, 40, hunks[1].OldStart)
	assert.Equal(t, 1, hunks[1].OldLines)
	assert.Equal(t, 41, hunks[1].NewStart)
	assert.Equal(t, 2, hunks[1].NewLines)
}

func TestParseHunks_Malformed(t *testing.T) {
	testCases := []struct {
		name  string
		patch string
	}{
		{name: "bad header", patch: "@@ -a,b +c @@\n+x"},
		{name: "text before hunk", patch: "hello\n@@ -1 +1 @@\n+x"},
		{name: "garbage inside hunk", patch: "@@ -1 +1 @@\n+x\n*oops"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHunks(tc.patch)
			require.Error(t, err)
		})
	}
}

func TestValidLines(t *testing.T) {
	valid := ValidLines(samplePatch, nil)

	for _, n := range []int{10, 11, 12, 13, 41, 42} {
		assert.Contains(t, valid, n)
	}
	assert.NotContains(t, valid, 14)
	assert.NotContains(t, valid, 40)

	assert.Empty(t, ValidLines("not a diff", nil))
}

func TestNewSideLines(t *testing.T) {
	hunks, err := ParseHunks(samplePatch)
	require.NoError(t, err)

	var added []Line
	for _, l := range NewSideLines(hunks) {
		if l.Added {
			added = append(added, l)
		}
	}
	require.Len(t, added, 3)
	assert.Equal(t, Line{Number: 11, Text: "\tname := u.Name", Added: true}, added[0])
	assert.Equal(t, 42, added[2].Number)
}

func TestSplitFile(t *testing.T) {
	file := core.FileDiff{FilePath: "user.go", Language: core.LanguageGo, Patch: samplePatch}

	t.Run("fits in one chunk", func(t *testing.T) {
		chunks, err := SplitFile(file, 10000)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0].Hunks, 2)
		assert.Equal(t, core.LanguageGo, chunks[0].Language)
	})

	t.Run("one chunk per hunk", func(t *testing.T) {
		chunks, err := SplitFile(file, 130)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.True(t, strings.HasPrefix(chunks[1].Patch, "@@ -40,1 +41,2 @@"))
	})

	t.Run("large hunk keeps line numbers", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("@@ -1,0 +1,60 @@\n")
		for i := 1; i <= 60; i++ {
			fmt.Fprintf(&b, "+line %02d\n", i)
		}
		big := core.FileDiff{FilePath: "big.py", Language: core.LanguagePython, Patch: b.String()}

		chunks, err := SplitFile(big, 200)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		var numbers []int
		for _, c := range chunks {
			hunks, err := ParseHunks(c.Patch)
			require.NoError(t, err)
			for _, l := range NewSideLines(hunks) {
				numbers = append(numbers, l.Number)
				assert.Equal(t, fmt.Sprintf("line %02d", l.Number), l.Text)
			}
		}
		assert.Len(t, numbers, 60)
	})

	t.Run("malformed patch is a validation error", func(t *testing.T) {
		_, err := SplitFile(core.FileDiff{FilePath: "x.go", Patch: "@@ nope"}, 1000)
		require.ErrorIs(t, err, core.ErrValidation)
	})
}
