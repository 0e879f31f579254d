package rgoc

// This file defines the surface AST produced by the parser. It mirrors the
// grammar directly: a Block is a sequence of BlockItems, and a BlockItem is
// one of an import, a definition, or a bare term to execute.

// SigKind is the tagged union of type annotations that can appear in a
// signature position (parameter types, return types, generic bounds).
type SigKind int

const (
	SigKindNamed SigKind = iota // a bare type name, e.g. `int`, `str`, or a generic parameter
	SigKindFunc                 // `(A, B)`
)

// TypeRef is a reference to a type: either a named type (possibly with
// generic type arguments) or a function type.
type TypeRef struct {
	Kind     SigKind
	Name     string     // set when Kind == SigKindNamed
	TypeArgs []*TypeRef // generic arguments of a named type, e.g. `list<int>`
	Params   []*TypeRef // set when Kind == SigKindFunc
	Result   *TypeRef   // only meaningful when Kind == SigKindFunc; the parser never sets it
	Bang     bool       // trailing `!`: compile-time marker (lowered to a compile-time int/str kind)
	Span     Span
}

// Param is one entry in a parameter list. A signature-only declaration may
// omit the name; the parser always sets the type, since an untyped lambda
// parameter is a parse error.
type Param struct {
	Name     string
	Type     *TypeRef
	Variadic bool
	Span     Span
}

// SigItem is one entry of a signature-only bind's parameter or bound list.
type SigItem struct {
	Name string
	Type *TypeRef
	Span Span
}

// Signature is the full type signature of a function: its parameters and
// return type, plus the generic parameter names it was parsed under.
type Signature struct {
	GenericParams []string
	Params        []*Param
	Result        *TypeRef
	Span          Span
}

// Literal is a constant term: an integer or a string.
type Literal struct {
	IsString bool
	IntVal   int64
	StrVal   string
	Span     Span
}

// Ident is a name reference, optionally applied to a list of argument
// terms (a call).
type Ident struct {
	Name string
	Args []Term
	Span Span
}

// Lambda is an anonymous function literal: `(params){body}` or, with no
// parameters, the bare `{body}`.
type Lambda struct {
	Params []*Param
	Body   *Block
	Span   Span
}

// Term is any expression-position syntax: a literal, a name reference
// (with or without a call), or a lambda.
type Term struct {
	Literal *Literal
	Ident   *Ident
	Lambda  *Lambda
	Span    Span
}

func (t Term) IsLiteral() bool { return t.Literal != nil }
func (t Term) IsIdent() bool   { return t.Ident != nil }
func (t Term) IsLambda() bool  { return t.Lambda != nil }

// Block is a brace-delimited sequence of BlockItems.
type Block struct {
	Items []BlockItem
	Span  Span
}

// Import is `name: @owner/path` (or `name: @/path` for a builtin import,
// an empty owner naming the builtin namespace).
type Import struct {
	Label string
	Path  string
	Span  Span
}

// FunctionDef is a top-level or nested named function definition.
type FunctionDef struct {
	Name   string
	Lambda *Lambda
	Span   Span
}

// LitDef binds a name to a constant literal.
type LitDef struct {
	Name    string
	Literal *Literal
	Span    Span
}

// IdentDef binds a name to the value of another term (an alias or a call
// result recorded under a new name).
type IdentDef struct {
	Name  string
	Ident *Ident
	Span  Span
}

// SigDef declares the signature of a name without providing a body, used to
// forward-declare builtins and imported functions.
type SigDef struct {
	Name string
	Sig  *Signature
	Span Span
}

// ScopeCapture is `(params) = of { continuation }`: the captured params
// are appended to `of`'s argument list as a synthesized continuation
// lambda whose body is `continuation`. The HIR lowering stage performs
// that desugaring (rule 7 of its lowering ruleset).
type ScopeCapture struct {
	Params       []*Param
	Of           Term
	Continuation *Block
	Span         Span
}

// BlockItem is one statement inside a Block. Exactly one field is set.
type BlockItem struct {
	Import       *Import
	FunctionDef  *FunctionDef
	LitDef       *LitDef
	IdentDef     *IdentDef
	SigDef       *SigDef
	ScopeCapture *ScopeCapture
	Lambda       *Lambda
	Ident        *Ident
	Span         Span
}

func (b BlockItem) Kind() string {
	switch {
	case b.Import != nil:
		return "import"
	case b.FunctionDef != nil:
		return "function-def"
	case b.LitDef != nil:
		return "lit-def"
	case b.IdentDef != nil:
		return "ident-def"
	case b.SigDef != nil:
		return "sig-def"
	case b.ScopeCapture != nil:
		return "scope-capture"
	case b.Lambda != nil:
		return "lambda"
	case b.Ident != nil:
		return "ident"
	default:
		return "unknown"
	}
}
