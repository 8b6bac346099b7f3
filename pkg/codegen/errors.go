package codegen

import (
	"fmt"

	"github.com/kestrel-lang/kestrelc/pkg/token"
)

// CodegenError is non-recoverable for the current translation unit, unlike
// the batched ParseError pkg/parser collects. The first CodegenError
// returned by any HandleX method in this package aborts lowering of the
// whole translation unit.
type CodegenError struct {
	File    string
	Node    token.NodeID
	Cache   *token.PositionCache
	Message string
}

func (e *CodegenError) Error() string {
	if e.Cache != nil {
		if excerpt := e.Cache.Excerpt(e.Node); excerpt != "" {
			return fmt.Sprintf("%s\n%s", e.Message, excerpt)
		}
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}
