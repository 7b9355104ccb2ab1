package flowlens

import (
	"github.com/flowlens/flowlens/internal/cache"
	"github.com/flowlens/flowlens/internal/syntax"
)

// Public aliases for the internal types that appear in the Analyzer API,
// so consumers never import internal packages directly.

type Pos = syntax.Pos
type Range = syntax.Range
type ParseError = syntax.ParseError
type Definition = cache.Definition
type DefKind = cache.DefKind
type Occurrence = cache.Occurrence
type Cache = cache.Cache

const (
	KindProcess  = cache.KindProcess
	KindWorkflow = cache.KindWorkflow
	KindFunction = cache.KindFunction
	KindOperator = cache.KindOperator
	KindVariable = cache.KindVariable
)
