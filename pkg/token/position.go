package token

import "fmt"

// NodeID is a stable integer identity assigned to an AST node at parse
// time, used as the key into PositionCache — a side-table approach over
// inlining a Range in every AST node variant.
type NodeID uint32

// Range is an opaque source range: a pair of byte offsets into the original
// source buffer for one file. Callers never construct one by hand outside
// pkg/token; PositionCache.NewNode records one per node and
// PositionCache.Range returns it by NodeID.
type Range struct {
	File       string
	Start, End int // byte offsets into the source buffer
}

// PositionCache recovers 1-based line/column and the source line text for
// any Range, and associates Ranges with NodeIDs.
type PositionCache struct {
	file    string
	source  []byte
	lineOff []int // byte offset of the start of each line (0-based line index)

	byNode map[NodeID]Range
	next   NodeID
}

// NewPositionCache builds a cache for one translation unit's source buffer.
func NewPositionCache(file string, source []byte) *PositionCache {
	pc := &PositionCache{file: file, source: source, byNode: map[NodeID]Range{}}
	pc.lineOff = append(pc.lineOff, 0)
	for i, b := range source {
		if b == '\n' {
			pc.lineOff = append(pc.lineOff, i+1)
		}
	}
	return pc
}

// NewNode mints a fresh NodeID and records its source Range in one call,
// the pattern every AST constructor in pkg/ast uses.
func (pc *PositionCache) NewNode(start, end int) NodeID {
	id := pc.next
	pc.next++
	pc.byNode[id] = Range{File: pc.file, Start: start, End: end}
	return id
}

// Range returns the recorded source range for a node, if any.
func (pc *PositionCache) Range(id NodeID) (Range, bool) {
	r, ok := pc.byNode[id]
	return r, ok
}

// LineCol converts a byte offset into a 1-based (line, column) pair.
func (pc *PositionCache) LineCol(offset int) (line, col int) {
	// Binary search for the last line-start offset <= offset.
	lo, hi := 0, len(pc.lineOff)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if pc.lineOff[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line = lo + 1
	col = offset - pc.lineOff[lo] + 1
	return line, col
}

// LineText returns the full text of the source line containing 'offset',
// used to render the caret-annotated excerpt every diagnostic carries.
func (pc *PositionCache) LineText(offset int) string {
	lo, hi := 0, len(pc.lineOff)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if pc.lineOff[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	start := pc.lineOff[lo]
	end := len(pc.source)
	if lo+1 < len(pc.lineOff) {
		end = pc.lineOff[lo+1]
	}
	for end > start && (pc.source[end-1] == '\n' || pc.source[end-1] == '\r') {
		end--
	}
	return string(pc.source[start:end])
}

// Excerpt renders the "file:line:col: source line + caret" block that every
// CodegenError/ParseError carries.
func (pc *PositionCache) Excerpt(id NodeID) string {
	r, ok := pc.byNode[id]
	if !ok {
		return ""
	}
	line, col := pc.LineCol(r.Start)
	text := pc.LineText(r.Start)
	caret := ""
	if col-1 >= 0 && col-1 <= len(text) {
		caret = fmt.Sprintf("%s^", spaces(col-1))
	}
	return fmt.Sprintf("%s:%d:%d: %s\n%s", r.File, line, col, text, caret)
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
