// Package mangle implements deterministic mangled names for functions
// (including constructors/destructors/methods) from namespace path +
// parameter types + accessibility.
//
// Jack never mangles names at all — it just uses "Class.method" verbatim
// (fmt.Sprintf("%s.%s", ...) in its lowering pass) — because Jack has no
// overloading and no nested namespaces; this package is modeled fresh
// since there is nothing to generalize from there.
package mangle

import (
	"fmt"
	"strings"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/sema"
	"github.com/kestrel-lang/kestrelc/pkg/types"
)

// Kind distinguishes an ordinary function/method from a constructor or
// destructor, which receive reserved suffixes.
type Kind int

const (
	KindFunction Kind = iota
	KindConstructor
	KindDestructor
)

// Mangle produces the deterministic external symbol for a function declared
// under the given namespace stack frames, with the given declared name,
// accessibility, parameter types and constructor/destructor/plain kind.
//
// Scheme: "_K" + one length-prefixed, N/C-tagged segment per namespace/class
// frame + a length-prefixed function-name segment ("new"/"delete" for
// constructors/destructors) + a two-letter accessibility tag + one
// length-prefixed segment per parameter's types.Type.Key(). Every component
// is length-prefixed so the scheme is injective over the inputs —
// two distinct (namespace, name, access, params) tuples can never collide,
// since the length prefixes make the encoding uniquely decodable.
func Mangle(frames []sema.NamespaceEntry, name string, access ast.Access, kind Kind, params []types.Type) string {
	var b strings.Builder
	b.WriteString("_K")

	for _, f := range frames {
		tag := "N"
		if f.Kind == sema.KindClass {
			tag = "C"
		}
		fmt.Fprintf(&b, "%s%d%s", tag, len(f.Name), f.Name)
	}

	fname := name
	switch kind {
	case KindConstructor:
		fname = "new"
	case KindDestructor:
		fname = "delete"
	}
	fmt.Fprintf(&b, "F%d%s", len(fname), fname)

	b.WriteString(accessTag(access))

	for _, p := range params {
		key := p.Key()
		fmt.Fprintf(&b, "p%d%s", len(key), key)
	}

	return b.String()
}

// MangleTemplateInstantiation suffixes a template's base mangled name with
// its concrete type arguments' encoding, so repeated instantiation with the
// same (name, args, namespace) always produces the same mangled symbol.
func MangleTemplateInstantiation(base string, args []types.Type) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("$")
	for i, a := range args {
		if i > 0 {
			b.WriteString(",")
		}
		key := a.Key()
		fmt.Fprintf(&b, "%d%s", len(key), key)
	}
	return b.String()
}

// External returns the verbatim source name for an attribute-set carrying
// 'nomangle', or an extern-declared function.
func External(name string) string { return name }

func accessTag(a ast.Access) string {
	switch a {
	case ast.AccessPublic:
		return "Pu"
	case ast.AccessPrivate:
		return "Pr"
	default:
		return "Pd"
	}
}
