package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowlens/flowlens/internal/syntax"
)

func posOf(t *testing.T, src, needle string) syntax.Pos {
	t.Helper()
	for i, line := range strings.Split(src, "\n") {
		if col := strings.Index(line, needle); col >= 0 {
			return syntax.Pos{Line: i, Col: col}
		}
	}
	t.Fatalf("needle %q not found in source", needle)
	return syntax.Pos{}
}

const libSource = `def greet(name) {
    name
}

def tidy(s) {
    s
}
`

const mainSource = `include { greet as hello; tidy } from './lib'

process ALIGN {
    input:
    val reads
    val ref
    output:
    val bam, emit: aligned
    script:
    tidy(reads)
}

workflow MAPPING {
    take:
    samples
    main:
    ALIGN(samples, 'x')
    emit:
    bam = samples
}
`

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New()
	c.Put("proj/lib.nf", libSource)
	c.Put("proj/main.nf", mainSource)
	return c
}

func TestPut_ReplacesEntry(t *testing.T) {
	c := New()
	c.Put("a.nf", "process P {\n}\n")
	require.Len(t, c.DefinitionsIn("a.nf"), 1)

	c.Put("a.nf", "process Q {\n}\nprocess R {\n}\n")
	defs := c.DefinitionsIn("a.nf")
	require.Len(t, defs, 2)
	assert.Equal(t, "Q", defs[0].Name)
	assert.Equal(t, "R", defs[1].Name)
}

func TestFiles_Sorted(t *testing.T) {
	c := newTestCache(t)
	assert.Equal(t, []string{"proj/lib.nf", "proj/main.nf"}, c.Files())
	assert.True(t, c.HasAST("proj/main.nf"))
	assert.False(t, c.HasAST("proj/other.nf"))
}

func TestRemove(t *testing.T) {
	c := newTestCache(t)
	c.Remove("proj/lib.nf")
	assert.False(t, c.HasAST("proj/lib.nf"))
	assert.Equal(t, []string{"proj/main.nf"}, c.Files())
}

func TestOwnerFile(t *testing.T) {
	c := newTestCache(t)

	pos := posOf(t, mainSource, "process ALIGN")
	node := c.NodeAt("proj/main.nf", pos)
	require.NotNil(t, node)
	assert.Equal(t, "proj/main.nf", c.OwnerFile(node))

	assert.Equal(t, "proj/lib.nf", c.OwnerFile(c.Script("proj/lib.nf")))
	assert.Equal(t, "", c.OwnerFile(nil))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "proj/main.nf", Normalize("proj//main.nf"))
	assert.Equal(t, "proj/main.nf", Normalize("proj/sub/../main.nf"))
}

func TestDefinitionsIn_SourceOrder(t *testing.T) {
	c := newTestCache(t)

	defs := c.DefinitionsIn("proj/main.nf")
	require.Len(t, defs, 4) // hello, tidy (include items), ALIGN, MAPPING
	assert.Equal(t, "hello", defs[0].Name)
	assert.Equal(t, KindVariable, defs[0].Kind)
	assert.Equal(t, "tidy", defs[1].Name)
	assert.Equal(t, "ALIGN", defs[2].Name)
	assert.Equal(t, KindProcess, defs[2].Kind)
	assert.Equal(t, "MAPPING", defs[3].Name)
	assert.Equal(t, KindWorkflow, defs[3].Kind)
}

func TestDefinitionsIn_ProjectWide(t *testing.T) {
	c := newTestCache(t)

	defs := c.DefinitionsIn("")
	require.NotEmpty(t, defs)

	// file-ordered definitions first, then builtins in name order
	assert.Equal(t, "greet", defs[0].Name)
	assert.Equal(t, "proj/lib.nf", defs[0].File)

	tail := defs[len(defs)-len(builtinOperators):]
	names := make([]string, len(tail))
	for i, d := range tail {
		names[i] = d.Name
		assert.False(t, d.Located(), "builtin %s should have no file", d.Name)
	}
	assert.Equal(t, []string{"collect", "filter", "flatten", "map", "mix"}, names)
}

func TestDefinition_ArityAndOutputs(t *testing.T) {
	c := newTestCache(t)

	defs := c.DefinitionsIn("proj/main.nf")
	align, mapping := defs[2], defs[3]

	assert.Equal(t, 2, align.Arity())
	assert.True(t, align.Callable())
	assert.True(t, align.HasOutput("aligned"))
	assert.False(t, align.HasOutput("bam"), "the channel name is not the emit label")

	assert.Equal(t, 1, mapping.Arity())
	assert.True(t, mapping.HasOutput("bam"))
	assert.False(t, mapping.HasOutput("other"))
}

func TestDefinition_AnonymousWorkflowDisplayName(t *testing.T) {
	c := New()
	c.Put("entry.nf", "workflow {\n    x\n}\n")

	defs := c.DefinitionsIn("entry.nf")
	require.Len(t, defs, 1)
	assert.Equal(t, "<entry>", defs[0].DisplayName())
	assert.Empty(t, defs[0].Name)
}

func TestResolveDefinition_LocalName(t *testing.T) {
	c := newTestCache(t)

	pos := posOf(t, mainSource, "ALIGN(samples")
	node := c.NodeAt("proj/main.nf", pos)
	require.IsType(t, &syntax.Ident{}, node)

	def := c.ResolveDefinition("proj/main.nf", node)
	require.NotNil(t, def)
	assert.Equal(t, "ALIGN", def.Name)
	assert.Equal(t, KindProcess, def.Kind)
}

func TestResolveDefinition_ThroughInclude(t *testing.T) {
	c := newTestCache(t)

	// `tidy(reads)` in the process body resolves through the include into lib.nf
	pos := posOf(t, mainSource, "tidy(reads)")
	node := c.NodeAt("proj/main.nf", pos)
	require.IsType(t, &syntax.Ident{}, node)

	def := c.ResolveDefinition("proj/main.nf", node)
	require.NotNil(t, def)
	assert.Equal(t, "tidy", def.Name)
	assert.Equal(t, KindFunction, def.Kind)
	assert.Equal(t, "proj/lib.nf", def.File)
}

func TestResolveDefinition_AliasResolvesToTarget(t *testing.T) {
	c := newTestCache(t)

	// an ident `hello` resolves to greet in lib.nf through the alias
	c.Put("proj/use.nf", "include { greet as hi } from './lib'\n\nworkflow {\n    hi('x')\n}\n")
	pos := posOf(t, "include { greet as hi } from './lib'\n\nworkflow {\n    hi('x')\n}\n", "hi('x')")
	node := c.NodeAt("proj/use.nf", pos)
	require.IsType(t, &syntax.Ident{}, node)

	def := c.ResolveDefinition("proj/use.nf", node)
	require.NotNil(t, def)
	assert.Equal(t, "greet", def.Name)
	assert.Equal(t, "proj/lib.nf", def.File)
}

func TestResolveDefinition_MissingIncludeFallsBack(t *testing.T) {
	c := New()
	c.Put("solo.nf", "include { ghost } from './nowhere'\n\nworkflow {\n    ghost()\n}\n")

	pos := posOf(t, "include { ghost } from './nowhere'\n\nworkflow {\n    ghost()\n}\n", "ghost()")
	node := c.NodeAt("solo.nf", pos)
	def := c.ResolveDefinition("solo.nf", node)

	// the include's own variable binding stands in for the unresolvable target
	require.NotNil(t, def)
	assert.Equal(t, "ghost", def.Name)
	assert.Equal(t, KindVariable, def.Kind)
	assert.Equal(t, "solo.nf", def.File)
}

func TestResolveDefinition_Builtin(t *testing.T) {
	c := New()
	c.Put("m.nf", "workflow {\n    data | map { x -> x }\n}\n")

	pos := posOf(t, "workflow {\n    data | map { x -> x }\n}\n", "map")
	node := c.NodeAt("m.nf", pos)
	def := c.ResolveDefinition("m.nf", node)

	require.NotNil(t, def)
	assert.Equal(t, "map", def.Name)
	assert.Equal(t, KindOperator, def.Kind)
	assert.True(t, def.IsOperator)
	assert.False(t, def.Located())
}

func TestResolveCallTarget(t *testing.T) {
	c := newTestCache(t)

	pos := posOf(t, mainSource, "ALIGN(samples")
	path := c.NodePathAt("proj/main.nf", pos)
	require.NotEmpty(t, path)
	call, ok := path[1].(*syntax.CallExpr)
	require.True(t, ok)

	def := c.ResolveCallTarget("proj/main.nf", call)
	require.NotNil(t, def)
	assert.Equal(t, "ALIGN", def.Name)
}

func TestResolveCallTarget_ReceiverCallsNeverResolve(t *testing.T) {
	src := "workflow {\n    ch.map { x -> x }\n}\n"
	c := New()
	c.Put("m.nf", src)

	script := c.Script("m.nf")
	var call *syntax.CallExpr
	syntax.Walk(script, func(n syntax.Node) bool {
		if v, ok := n.(*syntax.CallExpr); ok && v.Receiver != nil {
			call = v
		}
		return true
	})
	require.NotNil(t, call)
	assert.Nil(t, c.ResolveCallTarget("m.nf", call))
}

func TestSourceText_FirstLine(t *testing.T) {
	c := newTestCache(t)

	defs := c.DefinitionsIn("proj/main.nf")
	align := defs[2]
	assert.Equal(t, "process ALIGN {", c.SourceText("proj/main.nf", align.Rng, 1))
}

func TestParseErrors_Recorded(t *testing.T) {
	c := New()
	errs := c.Put("bad.nf", "include { broken }\n")
	assert.NotEmpty(t, errs)
	assert.Equal(t, errs, c.ParseErrors("bad.nf"))
}
