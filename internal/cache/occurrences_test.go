package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defNamed(t *testing.T, c *Cache, file, name string) *Definition {
	t.Helper()
	for _, def := range c.DefinitionsIn(file) {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("definition %q not found in %s", name, file)
	return nil
}

func TestOccurrencesOf_IncludesDeclarationWhenAsked(t *testing.T) {
	c := newTestCache(t)
	align := defNamed(t, c, "proj/main.nf", "ALIGN")

	with := c.OccurrencesOf(align, true)
	without := c.OccurrencesOf(align, false)

	require.Len(t, with, 2) // declaration + the call in MAPPING
	require.Len(t, without, 1)

	var declCount int
	for _, occ := range with {
		if occ.IsDeclaration {
			declCount++
			assert.Equal(t, align.NameRng, occ.Rng)
		}
	}
	assert.Equal(t, 1, declCount)

	for _, occ := range without {
		assert.False(t, occ.IsDeclaration, "includeDeclaration=false must exclude the declaration")
	}
}

func TestOccurrencesOf_CrossFile(t *testing.T) {
	c := newTestCache(t)
	tidy := defNamed(t, c, "proj/lib.nf", "tidy")

	occs := c.OccurrencesOf(tidy, true)

	files := make(map[string]int)
	for _, occ := range occs {
		files[occ.File]++
	}
	assert.Equal(t, 1, files["proj/lib.nf"], "the declaration in lib.nf")
	assert.Equal(t, 2, files["proj/main.nf"], "the include item and the call site")
}

func TestOccurrencesOf_AliasTextAndRange(t *testing.T) {
	c := newTestCache(t)
	greet := defNamed(t, c, "proj/lib.nf", "greet")

	occs := c.OccurrencesOf(greet, true)

	var includeOcc *Occurrence
	for i := range occs {
		if occs[i].IncludeItem != nil {
			includeOcc = &occs[i]
		}
	}
	require.NotNil(t, includeOcc, "the aliased include item is an occurrence of greet")
	// the occurrence carries the alias token, not the base name
	assert.Equal(t, "hello", includeOcc.Text)
	assert.Equal(t, includeOcc.IncludeItem.AliasRange, includeOcc.Rng)
}

func TestOccurrencesOf_UnaliasedIncludeItem(t *testing.T) {
	c := newTestCache(t)
	tidy := defNamed(t, c, "proj/lib.nf", "tidy")

	occs := c.OccurrencesOf(tidy, true)

	var includeOcc *Occurrence
	for i := range occs {
		if occs[i].IncludeItem != nil {
			includeOcc = &occs[i]
		}
	}
	require.NotNil(t, includeOcc)
	assert.Equal(t, "tidy", includeOcc.Text)
	assert.Equal(t, includeOcc.IncludeItem.NameRange, includeOcc.Rng)
}

func TestOccurrencesOf_FileThenSourceOrder(t *testing.T) {
	c := newTestCache(t)
	tidy := defNamed(t, c, "proj/lib.nf", "tidy")

	occs := c.OccurrencesOf(tidy, true)
	require.GreaterOrEqual(t, len(occs), 3)

	for i := 1; i < len(occs); i++ {
		prev, cur := occs[i-1], occs[i]
		if prev.File == cur.File {
			assert.True(t, prev.Rng.Start.Before(cur.Rng.Start) || prev.Rng.Start == cur.Rng.Start,
				"occurrences within a file must be in source order")
		} else {
			assert.Less(t, prev.File, cur.File, "files must be visited in sorted order")
		}
	}
}

func TestOccurrencesOf_NilDefinition(t *testing.T) {
	c := newTestCache(t)
	assert.Nil(t, c.OccurrencesOf(nil, true))
}
