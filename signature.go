package rgoc

// This file resolves surface-level signatures (as written by the parser)
// into the FunctionSig shape the symbol registry and HIR lowering stage
// consume. Generic parameters are erased to an opaque `any` type rather
// than monomorphized: this compiler has a single codegen target and no
// layout-dependent specialization, so instantiating a distinct copy of a
// generic function per call site would only multiply code size for no
// benefit.

const genericErasureTypeName = "any"

// ResolveSignature turns a parsed Signature into the FunctionSig form used
// from here on, substituting every occurrence of one of sig's own generic
// parameters with the opaque erasure type.
func ResolveSignature(sig *Signature) *FunctionSig {
	params := make([]*TypeRef, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = substituteGenerics(p.Type, sig.GenericParams)
	}
	return &FunctionSig{
		Params: params,
		Result: substituteGenerics(sig.Result, sig.GenericParams),
	}
}

func substituteGenerics(ref *TypeRef, generics []string) *TypeRef {
	if ref == nil {
		return nil
	}
	if ref.Kind == SigKindNamed {
		for _, g := range generics {
			if g == ref.Name {
				return &TypeRef{Kind: SigKindNamed, Name: genericErasureTypeName, Bang: ref.Bang, Span: ref.Span}
			}
		}
		if len(ref.TypeArgs) == 0 {
			return ref
		}
		args := make([]*TypeRef, len(ref.TypeArgs))
		for i, a := range ref.TypeArgs {
			args[i] = substituteGenerics(a, generics)
		}
		return &TypeRef{Kind: SigKindNamed, Name: ref.Name, TypeArgs: args, Bang: ref.Bang, Span: ref.Span}
	}

	params := make([]*TypeRef, len(ref.Params))
	for i, p := range ref.Params {
		params[i] = substituteGenerics(p, generics)
	}
	return &TypeRef{
		Kind:   SigKindFunc,
		Params: params,
		Result: substituteGenerics(ref.Result, generics),
		Bang:   ref.Bang,
		Span:   ref.Span,
	}
}

// FunctionDefSignature derives a FunctionSig directly from a parsed
// FunctionDef's Lambda, for functions that never received an explicit
// signature-only bind of their own: every parameter without an annotation
// is treated as the opaque erasure type, and the result type is left nil.
func FunctionDefSignature(fn *FunctionDef) *FunctionSig {
	params := make([]*TypeRef, len(fn.Lambda.Params))
	for i, p := range fn.Lambda.Params {
		if p.Type != nil {
			params[i] = p.Type
			continue
		}
		params[i] = &TypeRef{Kind: SigKindNamed, Name: genericErasureTypeName, Span: p.Span}
	}
	return &FunctionSig{Params: params}
}

// ExpectedParamCount returns how many positional arguments sig expects. A
// trailing variadic parameter in the originating Signature is not modeled
// on FunctionSig itself, so callers that need variadic-aware arity checks
// should consult the originating Signature directly.
func ExpectedParamCount(sig *FunctionSig) int {
	return len(sig.Params)
}

// ResolveIdentTarget follows alias chains recorded in the symbol registry
// until it lands on a declared function, or reports why it can't.
func ResolveIdentTarget(registry *SymbolRegistry, name string, span Span) (*FunctionSig, error) {
	seen := make(map[string]bool)
	cur := name
	for {
		if sig, ok := registry.GetFunction(cur); ok {
			return sig, nil
		}
		entry, ok := registry.GetValue(cur)
		if !ok {
			return nil, NewError(Resolve, "undefined name `"+name+"`", span)
		}
		if entry.Kind != ValueKindAlias {
			return nil, NewError(Resolve, "`"+name+"` does not name a function", span)
		}
		if seen[cur] {
			return nil, NewError(Resolve, "alias cycle detected while resolving `"+name+"`", span)
		}
		seen[cur] = true
		cur = entry.Alias
	}
}

// IsEffectful reports whether a signature's result type was marked with a
// trailing `!`. No lowering stage consults it.
func IsEffectful(sig *Signature) bool {
	return sig.Result != nil && sig.Result.Bang
}
