package rgoc

// BuiltinFunctionDef is a compiler-known function available through an
// `import` of a builtin path, independent of any user-written rgo source.
type BuiltinFunctionDef struct {
	Name   string
	Params []*TypeRef
	Result *TypeRef
}

// BuiltinValueDef is a compiler-known constant exposed the same way.
type BuiltinValueDef struct {
	Name    string
	Literal *Literal
}

// BuiltinTypeDef installs a name as a type alias rather than a value or
// function, e.g. the `int` and `str` builtin imports.
type BuiltinTypeDef struct {
	Name string
}

// BuiltinSpec is everything one builtin import path contributes to the
// symbol table: zero or more functions, values, and type installs. Every
// entry below corresponds to exactly one import basename, matching the
// original compiler's builtin_import_spec one-name-one-entry table rather
// than grouping unrelated functions under a shared module name.
type BuiltinSpec struct {
	Functions []BuiltinFunctionDef
	Values    []BuiltinValueDef
	Types     []BuiltinTypeDef
}

func namedType(name string) *TypeRef { return &TypeRef{Kind: SigKindNamed, Name: name} }

// builtinImportSpec is the exhaustive table of builtin import basenames
// recognized by this compiler, one entry per name exactly as the original
// registers them: `int`/`str` install a type, `fmt` additionally registers
// a distinct `write` function, `puts` registers under both `puts` and the
// runtime name `rgo_puts`, and `printf`/`sprintf` are no-ops (the names exist only so an
// import of them doesn't fail; the actual calls are handled directly by
// codegen's variadic libc call path). Anything not listed here is resolved
// as a user source import instead.
func builtinImportSpec(name string) (*BuiltinSpec, bool) {
	intT, strT := namedType("int"), namedType("str")

	switch name {
	case "int":
		return &BuiltinSpec{Types: []BuiltinTypeDef{{Name: "int"}}}, true

	case "str":
		return &BuiltinSpec{Types: []BuiltinTypeDef{{Name: "str"}}}, true

	case "add":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "add", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "sub":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "sub", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "mul":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "mul", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "div":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "div", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "eq":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "eq", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "eqi":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "eqi", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "lt":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "lt", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "gt":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "gt", Params: []*TypeRef{intT, intT}, Result: intT},
		}}, true

	case "eqs":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "eqs", Params: []*TypeRef{strT, strT}, Result: intT},
		}}, true

	case "itoa":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "itoa", Params: []*TypeRef{intT}, Result: strT},
		}}, true

	case "fmt":
		// `fmt` registers both the formatting call itself and a second,
		// independent `write` entry (the original's builtin_import_spec
		// does the same under the "fmt" match arm).
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "fmt", Params: []*TypeRef{strT}, Result: strT},
			{Name: "write", Params: []*TypeRef{strT}, Result: nil},
		}}, true

	case "write":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "write", Params: []*TypeRef{strT}, Result: nil},
		}}, true

	case "puts":
		// The runtime helper is named rgo_puts; it is additionally declared
		// under the surface name `puts` so a `puts: @/puts` import resolves
		// calls written as `puts(...)` the same way every other builtin's
		// surface name matches its basename.
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "puts", Params: []*TypeRef{strT}, Result: nil},
			{Name: "rgo_puts", Params: []*TypeRef{strT}, Result: nil},
		}}, true

	case "rgo_write":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "rgo_write", Params: []*TypeRef{strT}, Result: nil},
		}}, true

	case "exit":
		return &BuiltinSpec{Functions: []BuiltinFunctionDef{
			{Name: "exit", Params: []*TypeRef{intT}, Result: nil},
		}}, true

	case "stdout":
		return &BuiltinSpec{Values: []BuiltinValueDef{
			{Name: "stdout", Literal: &Literal{IsString: true, StrVal: ""}},
		}}, true

	case "printf", "sprintf":
		return &BuiltinSpec{}, true

	default:
		return nil, false
	}
}

// builtinExportedNames returns the set of names a builtin import makes
// visible under its local label, accounting for `puts` additionally being
// recorded as `rgo_puts` so codegen can find its runtime entry point by a
// name distinct from the user-facing label.
func builtinExportedNames(spec *BuiltinSpec) []string {
	names := make([]string, 0, len(spec.Functions)+len(spec.Values)+len(spec.Types))
	for _, fn := range spec.Functions {
		names = append(names, fn.Name)
	}
	for _, v := range spec.Values {
		names = append(names, v.Name)
	}
	for _, t := range spec.Types {
		names = append(names, t.Name)
	}
	return names
}

// RegisterBuiltinImport resolves an import's path to its builtin basename
// and, if it names a known builtin, installs every function, value, and
// type it exposes into registry under the import's label.
func RegisterBuiltinImport(registry *SymbolRegistry, imp *Import) (bool, error) {
	basename := extractImportBasename(imp.Path)
	spec, ok := builtinImportSpec(basename)
	if !ok {
		return false, nil
	}

	for _, fn := range spec.Functions {
		registry.DeclareFunction(fn.Name, &FunctionSig{Params: fn.Params, Result: fn.Result})
		registry.RecordBuiltinImport(fn.Name, imp.Label)
	}
	for _, v := range spec.Values {
		if err := registry.DeclareValue(v.Name, &ValueEntry{Kind: ValueKindLiteral, Literal: v.Literal}, imp.Span); err != nil {
			return true, err
		}
		registry.RecordBuiltinImport(v.Name, imp.Label)
	}
	for _, t := range spec.Types {
		registry.InstallType(t.Name, &TypeInfo{ImportLabel: imp.Label})
		registry.RecordBuiltinImport(t.Name, imp.Label)
	}
	return true, nil
}

// extractImportBasename takes the last `/`-separated component of an
// import path, which is what builtinImportSpec keys its table on.
func extractImportBasename(path string) string {
	last := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			last = path[i+1:]
			break
		}
	}
	return last
}
