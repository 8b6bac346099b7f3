package parser

import "fmt"

// ParseError is an expectation failure at a source range: recoverable via
// synchronization, counted, surfaced at end of parse. Unlike CodegenError it
// never aborts the pass immediately — the caller batches these and only
// rejects the parse if the count is nonzero.
type ParseError struct {
	File    string
	Line    int
	Col     int
	Excerpt string
	Message string
}

func (e ParseError) Error() string {
	if e.Excerpt != "" {
		return fmt.Sprintf("%s:%d:%d: %s\n%s", e.File, e.Line, e.Col, e.Message, e.Excerpt)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Message)
}
