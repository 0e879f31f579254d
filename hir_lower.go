package rgoc

import (
	"fmt"

	"github.com/rgo-lang/rgoc/internal/rlog"
)

// Lowerer turns a stream of surface AST BlockItems into HIR. It exposes
// the same consume/produce/finish shape the originating design used: feed
// items in with Consume, drain whatever became ready with Produce, and
// call Finish once the whole input has been consumed to flush anything
// still buffered (the top-level block's own items, since they have no
// enclosing function to flush them into).
type Lowerer struct {
	scope          *Scope
	registry       *SymbolRegistry
	queue          []HBlockItem
	builtinImports map[string]bool
}

func NewLowerer(registry *SymbolRegistry) *Lowerer {
	return &Lowerer{
		scope:          NewRootScope(),
		registry:       registry,
		builtinImports: make(map[string]bool),
	}
}

func (l *Lowerer) emit(item HBlockItem) { l.queue = append(l.queue, item) }

// Produce dequeues the next ready HIR item, FIFO.
func (l *Lowerer) Produce() (HBlockItem, bool) {
	if len(l.queue) == 0 {
		return HBlockItem{}, false
	}
	item := l.queue[0]
	l.queue = l.queue[1:]
	return item, true
}

// Finish returns and clears whatever remains queued.
func (l *Lowerer) Finish() []HBlockItem {
	rest := l.queue
	l.queue = nil
	return rest
}

// Consume processes one surface BlockItem, per §4.1's seven lowering
// rules, enqueuing zero or more HIR items.
func (l *Lowerer) Consume(item BlockItem) error {
	switch {
	case item.Import != nil:
		return l.consumeImport(item.Import)
	case item.LitDef != nil:
		return l.consumeLitDef(item.LitDef)
	case item.IdentDef != nil:
		return l.consumeIdentDef(item.IdentDef)
	case item.SigDef != nil:
		return l.consumeSigDef(item.SigDef)
	case item.FunctionDef != nil:
		return l.consumeFunctionDef(item.FunctionDef)
	case item.ScopeCapture != nil:
		return l.consumeScopeCapture(item.ScopeCapture)
	case item.Ident != nil:
		return l.consumeExecIdent(item.Ident, item.Span)
	case item.Lambda != nil:
		_, err := l.synthesizeLambda(item.Lambda)
		return err
	default:
		return NewError(Internal, "unrecognized block item", item.Span)
	}
}

// Rule 1: imports.
func (l *Lowerer) consumeImport(imp *Import) error {
	basename := extractImportBasename(imp.Path)
	if spec, ok := builtinImportSpec(basename); ok {
		if _, err := RegisterBuiltinImport(l.registry, imp); err != nil {
			return err
		}
		for _, name := range builtinExportedNames(spec) {
			l.builtinImports[name] = true
		}
	}
	l.emit(HBlockItem{Import: &HImport{Label: imp.Label, Path: imp.Path, Span: imp.Span}, Span: imp.Span})
	return nil
}

// Rule 2: literal definitions.
func (l *Lowerer) consumeLitDef(def *LitDef) error {
	if _, exists := l.scope.GetLocal(def.Name); exists {
		return NewError(Resolve, "duplicate symbol `"+def.Name+"` in scope", def.Span)
	}
	l.scope.Insert(def.Name, &ScopeEntry{Kind: ScopeValue, ConstantLiteral: def.Literal, Span: def.Span})
	l.emit(HBlockItem{LitDef: &HLitDef{Name: def.Name, Literal: def.Literal, Span: def.Span}, Span: def.Span})
	return nil
}

// Rule 3: identifier definitions — alias when no args, partial application
// otherwise.
func (l *Lowerer) consumeIdentDef(def *IdentDef) error {
	if len(def.Ident.Args) == 0 {
		target, ok := l.scope.Get(def.Ident.Name)
		if !ok {
			return NewError(Resolve, "undefined name `"+def.Ident.Name+"`", def.Span)
		}
		l.scope.Insert(def.Name, target)
		if err := l.registry.DeclareValue(def.Name, &ValueEntry{Kind: ValueKindAlias, Alias: def.Ident.Name}, def.Span); err != nil {
			return err
		}
		return nil
	}

	args, err := l.lowerArgs(def.Ident.Args)
	if err != nil {
		return err
	}
	l.emit(HBlockItem{ApplyDef: &HApply{Name: def.Name, Of: def.Ident.Name, Args: args, Span: def.Span}, Span: def.Span})
	l.scope.Insert(def.Name, &ScopeEntry{Kind: ScopeType, SigKind: KSig, Span: def.Span})
	return nil
}

// Rule 4: signature definitions.
func (l *Lowerer) consumeSigDef(def *SigDef) error {
	fsig := ResolveSignature(def.Sig)
	l.registry.DeclareFunction(def.Name, fsig)
	hsig := astSignatureToH(def.Sig)
	l.scope.Insert(def.Name, &ScopeEntry{Kind: ScopeType, SigKind: KSig, Sig: hsig, IsSignatureOnly: true, Span: def.Span})
	l.emit(HBlockItem{SigDef: &HSigDef{Name: def.Name, Sig: hsig, Generics: def.Sig.GenericParams, Span: def.Span}, Span: def.Span})
	return nil
}

// Rule 5: function definitions.
func (l *Lowerer) consumeFunctionDef(def *FunctionDef) error {
	return l.lowerFunctionBody(def.Name, def.Lambda)
}

// Rule 6: exec statements (bare calls).
func (l *Lowerer) consumeExecIdent(id *Ident, span Span) error {
	args, err := l.lowerArgs(id.Args)
	if err != nil {
		return err
	}
	l.emit(HBlockItem{Exec: &HExec{Of: id.Name, Args: args, Span: span}, Span: span})
	return nil
}

// Rule 7: scope-capture sugar. `(params) = of { continuation }` desugars
// to `of(...of.Args, lambda(params){continuation})`.
func (l *Lowerer) consumeScopeCapture(sc *ScopeCapture) error {
	if !sc.Of.IsIdent() {
		return NewError(Parse, "scope-capture target must be a callable identifier", sc.Span)
	}
	lambda := &Lambda{Params: sc.Params, Body: sc.Continuation, Span: sc.Span}
	cont := Term{Lambda: lambda, Span: sc.Span}
	allArgs := append(append([]Term{}, sc.Of.Ident.Args...), cont)
	args, err := l.lowerArgs(allArgs)
	if err != nil {
		return err
	}
	l.emit(HBlockItem{Exec: &HExec{Of: sc.Of.Ident.Name, Args: args, Span: sc.Span}, Span: sc.Span})
	return nil
}

// lowerArgs lowers a list of surface Terms into HArgs, hoisting any
// non-bare-name term into a preceding synthesized binding first.
func (l *Lowerer) lowerArgs(args []Term) ([]HArg, error) {
	out := make([]HArg, 0, len(args))
	for _, t := range args {
		arg, err := l.lowerArgTerm(t)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func (l *Lowerer) lowerArgTerm(t Term) (HArg, error) {
	switch {
	case t.IsLiteral():
		return HArg{Literal: t.Literal, Span: t.Span}, nil
	case t.IsIdent():
		id := t.Ident
		if len(id.Args) == 0 {
			return HArg{Name: id.Name, Span: t.Span}, nil
		}
		tmp := l.scope.NewName("tmp")
		nestedArgs, err := l.lowerArgs(id.Args)
		if err != nil {
			return HArg{}, err
		}
		l.emit(HBlockItem{ApplyDef: &HApply{Name: tmp, Of: id.Name, Args: nestedArgs, Span: t.Span}, Span: t.Span})
		return HArg{Name: tmp, Span: t.Span}, nil
	case t.IsLambda():
		name, err := l.synthesizeLambda(t.Lambda)
		if err != nil {
			return HArg{}, err
		}
		return HArg{Name: name, Span: t.Span}, nil
	default:
		return HArg{}, NewError(Internal, "unrecognized term kind", t.Span)
	}
}

func (l *Lowerer) synthesizeLambda(lambda *Lambda) (string, error) {
	name := l.scope.NewName("lambda")
	if err := l.lowerFunctionBody(name, lambda); err != nil {
		return "", err
	}
	return name, nil
}

// lowerFunctionBody implements rule 5 in full: it declares name, lowers
// the lambda body in a fresh nested scope, normalizes it to a fixed
// point (§4.1.1), computes its capture set, and prepends capture
// parameters to its signature.
func (l *Lowerer) lowerFunctionBody(name string, lambda *Lambda) error {
	outerScope := l.scope
	paramSigItems := make([]HSigItem, len(lambda.Params))
	for i, p := range lambda.Params {
		paramSigItems[i] = HSigItem{Name: p.Name, Kind: paramHKind(p), Span: p.Span}
	}
	outerScope.Insert(name, &ScopeEntry{Kind: ScopeType, SigKind: KSig, Sig: &HSignature{Items: paramSigItems}, Span: lambda.Span})

	savedQueue := l.queue
	l.queue = nil
	l.scope = outerScope.Enter("_" + name)
	for _, p := range lambda.Params {
		l.scope.Insert(p.Name, &ScopeEntry{Kind: ScopeValue, SigKind: paramHKind(p), Span: p.Span})
	}

	for _, item := range lambda.Body.Items {
		if err := l.Consume(item); err != nil {
			l.scope = outerScope
			l.queue = savedQueue
			return err
		}
	}

	bodyItems := l.normalizeFixedPoint(l.queue)
	bodyScope := l.scope
	l.scope = outerScope
	l.queue = savedQueue

	locals := make(map[string]bool, len(lambda.Params))
	for _, p := range lambda.Params {
		locals[p.Name] = true
	}
	captureNames := freeNames(bodyItems, locals)
	captureNames = l.filterResolvableCaptures(captureNames, outerScope)

	captureItems := make([]HSigItem, 0, len(captureNames))
	for _, c := range captureNames {
		entry, _ := outerScope.Get(c)
		captureItems = append(captureItems, HSigItem{Name: c, Kind: entry.SigKind, Sig: entry.Sig, Span: entry.Span})
	}

	sig := &HSignature{Items: append(append([]HSigItem{}, captureItems...), paramSigItems...)}
	bodyScope.RecordCaptures(name, captureNames)

	kept := make([]HBlockItem, 0, len(bodyItems))
	for _, it := range bodyItems {
		if it.FunctionDef != nil {
			l.emit(it)
			continue
		}
		kept = append(kept, it)
	}
	bodyItems = kept

	fn := &HFunction{Name: name, Sig: sig, Body: &HBlock{Items: bodyItems, Span: lambda.Span}, Span: lambda.Span}
	l.registry.DeclareFunction(name, hSignatureToFunctionSig(sig))
	// Nested functions are emitted before their enclosing item, satisfying
	// the ordering guarantee that forward labels are never required.
	l.emit(HBlockItem{FunctionDef: &HFunctionDef{Fn: fn}, Span: lambda.Span})
	return nil
}

// filterResolvableCaptures drops any free name that is a builtin import,
// that the enclosing scope cannot resolve (logged as a warning), or that
// names a signature-only declaration. Every other name, including a
// top-level function or a constant visible from the enclosing scope, is
// kept as an explicit capture argument.
func (l *Lowerer) filterResolvableCaptures(names []string, outer *Scope) []string {
	kept := make([]string, 0, len(names))
	for _, n := range names {
		if l.builtinImports[n] {
			continue
		}
		entry, ok := outer.Get(n)
		if !ok {
			rlog.Warn("dropping unresolvable free name from capture set", map[string]interface{}{"name": n})
			continue
		}
		if entry.IsSignatureOnly {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

func paramHKind(p *Param) HKind {
	if p.Type == nil {
		return KSig
	}
	return typeRefToHKind(p.Type)
}

func typeRefToHKind(t *TypeRef) HKind {
	if t == nil {
		return KSig
	}
	if t.Kind == SigKindFunc {
		return KSig
	}
	switch t.Name {
	case "int":
		if t.Bang {
			return KCompileTimeInt
		}
		return KInt
	case "str":
		if t.Bang {
			return KCompileTimeStr
		}
		return KStr
	default:
		return KIdent
	}
}

func astSignatureToH(sig *Signature) *HSignature {
	items := make([]HSigItem, len(sig.Params))
	for i, p := range sig.Params {
		kind := typeRefToHKind(p.Type)
		item := HSigItem{Name: p.Name, Kind: kind, Span: p.Span}
		if kind == KSig && p.Type != nil && p.Type.Kind == SigKindFunc {
			item.Sig = funcTypeRefToH(p.Type)
		}
		items[i] = item
	}
	return &HSignature{Items: items}
}

func funcTypeRefToH(t *TypeRef) *HSignature {
	items := make([]HSigItem, len(t.Params))
	for i, p := range t.Params {
		items[i] = HSigItem{Name: fmt.Sprintf("_%d", i), Kind: typeRefToHKind(p), Span: p.Span}
	}
	return &HSignature{Items: items}
}

func hSignatureToFunctionSig(sig *HSignature) *FunctionSig {
	params := make([]*TypeRef, len(sig.Items))
	for i, item := range sig.Items {
		params[i] = hKindToTypeRef(item)
	}
	return &FunctionSig{Params: params}
}

func hKindToTypeRef(item HSigItem) *TypeRef {
	switch item.Kind {
	case KInt, KCompileTimeInt:
		return &TypeRef{Kind: SigKindNamed, Name: "int", Bang: item.Kind == KCompileTimeInt}
	case KStr, KCompileTimeStr:
		return &TypeRef{Kind: SigKindNamed, Name: "str", Bang: item.Kind == KCompileTimeStr}
	case KSig:
		return &TypeRef{Kind: SigKindFunc}
	default:
		return &TypeRef{Kind: SigKindNamed, Name: "any"}
	}
}
