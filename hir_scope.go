package rgoc

import "fmt"

// ScopeEntryKind distinguishes a type-position scope entry (a signature,
// possibly signature-only / forward-declared) from a value-position one
// (a literal, a parameter, or a captured binding).
type ScopeEntryKind int

const (
	ScopeType ScopeEntryKind = iota
	ScopeValue
)

// ScopeEntry is what one name resolves to inside a Scope.
type ScopeEntry struct {
	Kind            ScopeEntryKind
	SigKind         HKind
	Sig             *HSignature
	IsSignatureOnly bool
	ConstantLiteral *Literal
	Span            Span
}

// namer hands out globally-unique names, shared by every Scope descended
// from the same root so that two sibling nested lambdas never collide.
type namer struct{ counter int }

func (n *namer) fresh(prefix string) string {
	n.counter++
	return fmt.Sprintf("%s__%d", prefix, n.counter)
}

// Scope is one lexical level of the HIR lowerer's name environment. Child
// scopes are created by Enter and chain to their parent for lookups,
// mirroring the teacher's outer/inner scope-chain idiom generalized from a
// grammar's lexical scoping to a CPS function's.
type Scope struct {
	parent   *Scope
	ns       string
	entries  map[string]*ScopeEntry
	namer    *namer
	captures map[string][]string // function name -> ordered capture param names
}

func NewRootScope() *Scope {
	return &Scope{
		entries:  make(map[string]*ScopeEntry),
		namer:    &namer{},
		captures: make(map[string][]string),
	}
}

// Enter creates a child scope whose namespace is this scope's namespace
// with suffix appended, sharing the parent's namer and capture table.
func (s *Scope) Enter(suffix string) *Scope {
	return &Scope{
		parent:   s,
		ns:       s.ns + suffix,
		entries:  make(map[string]*ScopeEntry),
		namer:    s.namer,
		captures: s.captures,
	}
}

func (s *Scope) Insert(name string, entry *ScopeEntry) {
	s.entries[name] = entry
}

// Get resolves a name by walking outward through enclosing scopes.
func (s *Scope) Get(name string) (*ScopeEntry, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if e, ok := sc.entries[name]; ok {
			return e, true
		}
	}
	return nil, false
}

// GetLocal resolves a name only within this scope, not its ancestors; used
// by the literal-definition lowering to reject a duplicate in the same
// scope.
func (s *Scope) GetLocal(name string) (*ScopeEntry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

func (s *Scope) NewName(prefix string) string {
	return s.namer.fresh(s.ns + "_" + prefix)
}

func (s *Scope) RecordCaptures(fn string, captures []string) {
	s.captures[fn] = captures
}

func (s *Scope) FunctionCaptures(fn string) []string {
	return s.captures[fn]
}
