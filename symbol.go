package rgoc

// FunctionSig is the resolved parameter/result shape of a declared
// function, after any generic parameters have been erased.
type FunctionSig struct {
	Params []*TypeRef
	Result *TypeRef
}

// TypeInfo records what is known about a declared type name: its arity (for
// generics) and, for builtin-imported types, the import label it came from.
type TypeInfo struct {
	GenericArity int
	ImportLabel  string
}

// ValueKind classifies an entry recorded under SymbolRegistry.values.
type ValueKind int

const (
	ValueKindLiteral ValueKind = iota
	ValueKindAlias
)

// ValueEntry is what a value-position name resolves to: either a constant
// literal or an alias of another name.
type ValueEntry struct {
	Kind    ValueKind
	Literal *Literal
	Alias   string
}

// SymbolRegistry accumulates every declared name across a compilation unit.
// Functions and types are last-write-wins: a later declaration silently
// shadows an earlier one of the same name, matching how a signature-only
// bind and a function-def bind for the same name refine each other across
// a file. Values are not: two literal/ident binds for the same name is a
// hard error, since a value binding has no refinement semantics to fall
// back on.
type SymbolRegistry struct {
	functions     map[string]*FunctionSig
	types         map[string]*TypeInfo
	values        map[string]*ValueEntry
	builtinImport map[string]string // name -> import label
}

func NewSymbolRegistry() *SymbolRegistry {
	return &SymbolRegistry{
		functions:     make(map[string]*FunctionSig),
		types:         make(map[string]*TypeInfo),
		values:        make(map[string]*ValueEntry),
		builtinImport: make(map[string]string),
	}
}

func (r *SymbolRegistry) DeclareFunction(name string, sig *FunctionSig) {
	r.functions[name] = sig
}

func (r *SymbolRegistry) InstallType(name string, info *TypeInfo) {
	r.types[name] = info
}

// DeclareValue records a value binding. It returns a Resolve CompileError
// if name is already bound, since re-binding a value silently would hide a
// likely programmer mistake rather than refine an earlier declaration.
func (r *SymbolRegistry) DeclareValue(name string, entry *ValueEntry, span Span) error {
	if _, exists := r.values[name]; exists {
		return NewError(Resolve, "duplicate value binding for `"+name+"`", span)
	}
	r.values[name] = entry
	return nil
}

func (r *SymbolRegistry) RecordBuiltinImport(name, label string) {
	r.builtinImport[name] = label
}

func (r *SymbolRegistry) GetFunction(name string) (*FunctionSig, bool) {
	sig, ok := r.functions[name]
	return sig, ok
}

func (r *SymbolRegistry) GetValue(name string) (*ValueEntry, bool) {
	entry, ok := r.values[name]
	return entry, ok
}

func (r *SymbolRegistry) GetTypeInfo(name string) (*TypeInfo, bool) {
	info, ok := r.types[name]
	return info, ok
}

func (r *SymbolRegistry) IsBuiltinImport(name string) bool {
	_, ok := r.builtinImport[name]
	return ok
}
