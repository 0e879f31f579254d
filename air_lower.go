package rgoc

import (
	"fmt"
	"sort"
)

const numRemainingWordOffset = 6

// inlineBuiltins are lowered inline rather than called: the arithmetic ones
// (false) compute a value and jump into one continuation, the comparison
// ones (true) compare two values and jump to one of two continuation
// targets; none of them ever returns.
var inlineBuiltins = map[string]bool{
	"add": false, "sub": false, "mul": false, "div": false,
	"eq": true, "eqi": true, "eqs": true, "lt": true, "gt": true,
}

func isArithmeticBuiltin(name string) bool {
	switch name {
	case "add", "sub", "mul", "div":
		return true
	}
	return false
}

func isInlineBuiltin(name string) bool {
	_, ok := inlineBuiltins[name]
	return ok
}

// isCallBuiltin names the builtins lowered to a real call-and-resume: they
// produce a result (or a side effect) and tail-jump into the trailing
// continuation argument, rather than branching directly.
func isCallBuiltin(name string) bool {
	switch name {
	case "itoa", "fmt", "write", "puts", "rgo_write", "printf", "sprintf":
		return true
	}
	return false
}

// AirLowerer drives HIR -> AIR, per function, carrying the per-function
// state the spec's §4.2 lowering rules thread through every statement.
type AirLowerer struct {
	registry *SymbolRegistry

	locals           map[string]bool
	closureRemaining map[string][]HKind
	unusedParams     map[string]bool
	literals         map[string]*Literal
	remainingUses    map[string]int
	tempCounter      int
}

// freshTemp names a compiler-synthesized local that never appears in
// source: the intermediate holding an arithmetic builtin's result before
// it is handed to its continuation.
func (al *AirLowerer) freshTemp() string {
	al.tempCounter++
	return fmt.Sprintf("__air_tmp%d", al.tempCounter)
}

func NewAirLowerer(registry *SymbolRegistry) *AirLowerer {
	return &AirLowerer{registry: registry}
}

func countBlockUses(items []HBlockItem) map[string]int {
	uses := make(map[string]int)
	mark := func(name string) {
		if name != "" {
			uses[name]++
		}
	}
	for _, it := range items {
		if it.ApplyDef != nil {
			mark(it.ApplyDef.Of)
			for _, a := range it.ApplyDef.Args {
				if !a.IsLiteral() {
					mark(a.Name)
				}
			}
		}
		if it.Exec != nil {
			mark(it.Exec.Of)
			for _, a := range it.Exec.Args {
				if !a.IsLiteral() {
					mark(a.Name)
				}
			}
		}
	}
	return uses
}

func (al *AirLowerer) takeRemainingUse(name string) int {
	n, ok := al.remainingUses[name]
	if !ok {
		return 0
	}
	if n > 0 {
		al.remainingUses[name] = n - 1
	}
	return n
}

func collectUnusedParamRefs(sig *AFunctionSig) map[string]bool {
	out := make(map[string]bool)
	for _, p := range sig.Params {
		if p.Kind == KSig {
			out[p.Name] = true
		}
	}
	return out
}

func (al *AirLowerer) takeReleaseStatements() []AirStmt {
	if len(al.unusedParams) == 0 {
		return nil
	}
	names := make([]string, 0, len(al.unusedParams))
	for n := range al.unusedParams {
		names = append(names, n)
	}
	sort.Strings(names)
	al.unusedParams = make(map[string]bool)
	stmts := make([]AirStmt, 0, len(names))
	for _, n := range names {
		// An unused closure-typed param is a live binding going out of
		// scope: its own captured/curried fields (if any) need releasing
		// too, so this goes through the recursive dispatcher rather than
		// the raw munmap-only release.
		stmts = append(stmts, AirStmt{Op: &AirOp{Kind: OpDeepReleaseHeap, ReleaseName: n}})
	}
	return stmts
}


// LowerFunction implements HIR function -> one or more AIR functions: the
// function itself plus its unwrapper/deep-release/deepcopy helper triad
// when it carries any closure-typed parameter.
func (al *AirLowerer) LowerFunction(fn *HFunction) ([]*AirFunction, error) {
	sig := &AFunctionSig{Name: fn.Name, Params: fn.Sig.Items, Span: fn.Span}

	al.locals = make(map[string]bool)
	al.closureRemaining = make(map[string][]HKind)
	for _, p := range sig.Params {
		al.locals[p.Name] = true
		if p.Kind == KSig && p.Sig != nil {
			al.closureRemaining[p.Name] = sigKinds(p.Sig)
		}
	}
	al.unusedParams = collectUnusedParamRefs(sig)
	al.literals = make(map[string]*Literal)
	al.remainingUses = countBlockUses(fn.Body.Items)
	al.tempCounter = 0

	var items []AirStmt
	for _, it := range fn.Body.Items {
		stmts, err := al.lowerBlockItem(it)
		if err != nil {
			return nil, err
		}
		items = append(items, stmts...)
	}

	self := &AirFunction{Sig: sig, Items: items}
	out := []*AirFunction{self}
	if helper := buildClosureUnwrapper(self); helper != nil {
		out = append(out, helper)
	}
	if helper := buildDeepReleaseHelper(self); helper != nil {
		out = append(out, helper)
	}
	if helper := buildDeepCopyHelper(self); helper != nil {
		out = append(out, helper)
	}
	return out, nil
}

func sigKinds(sig *HSignature) []HKind {
	out := make([]HKind, len(sig.Items))
	for i, it := range sig.Items {
		out[i] = it.Kind
	}
	return out
}

func (al *AirLowerer) lowerBlockItem(item HBlockItem) ([]AirStmt, error) {
	switch {
	case item.LitDef != nil:
		al.locals[item.LitDef.Name] = true
		al.literals[item.LitDef.Name] = item.LitDef.Literal
		return nil, nil
	case item.ApplyDef != nil:
		if al.locals[item.ApplyDef.Of] {
			if _, ok := al.closureRemaining[item.ApplyDef.Of]; ok {
				return al.lowerClosureCurry(item.ApplyDef)
			}
		}
		return al.lowerNewClosure(item.ApplyDef)
	case item.Exec != nil:
		return al.lowerExec(item.Exec)
	case item.FunctionDef != nil, item.SigDef != nil, item.Import != nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected HIR block item in function body")
	}
}

func (al *AirLowerer) literalFor(name string) *Literal {
	return al.literals[name]
}

func (al *AirLowerer) argFor(name string, kind HKind) AArg {
	return AArg{Name: name, Kind: kind, Literal: al.literalFor(name)}
}

// resolveTarget classifies a callee name as a top-level function (with a
// known signature) or an already-bound closure value.
func (al *AirLowerer) resolveTarget(name string) (*AFunctionSig, bool) {
	if fsig, ok := al.registry.GetFunction(name); ok {
		params := make([]HSigItem, len(fsig.Params))
		for i, p := range fsig.Params {
			params[i] = HSigItem{Name: fmt.Sprintf("_%d", i), Kind: typeRefToHKind(p)}
		}
		return &AFunctionSig{Name: name, Params: params}, true
	}
	return nil, false
}

// prepareArgs ensures every function-valued argument that isn't already a
// local binding gets a fresh NewClosure, per §4.2's arg-preparation rule.
func (al *AirLowerer) prepareArgs(args []HArg) []AirStmt {
	var stmts []AirStmt
	for _, a := range args {
		if a.IsLiteral() || al.locals[a.Name] {
			continue
		}
		if fsig, ok := al.resolveTarget(a.Name); ok {
			al.locals[a.Name] = true
			if len(fsig.Params) > 0 {
				al.closureRemaining[a.Name] = kindsOf(fsig.Params)
			}
			stmts = append(stmts, AirStmt{Op: &AirOp{
				Kind: OpNewClosure, Target: fsig, ClosureOf: a.Name, EnvEnd: a.Name, Args: nil,
			}})
		}
	}
	return stmts
}

func kindsOf(items []HSigItem) []HKind {
	out := make([]HKind, len(items))
	for i, it := range items {
		out[i] = it.Kind
	}
	return out
}

func (al *AirLowerer) lowerNewClosure(apply *HApply) ([]AirStmt, error) {
	al.takeRemainingUse(apply.Of)
	for _, a := range apply.Args {
		if !a.IsLiteral() {
			al.takeRemainingUse(a.Name)
		}
	}

	stmts := al.prepareArgs(apply.Args)
	target, isFunc := al.resolveTarget(apply.Of)

	var args []AArg
	if isFunc {
		args = al.consumeArgsAgainstSignature(target.Params, apply.Args)
	} else {
		for _, a := range apply.Args {
			kind := KInt
			if !a.IsLiteral() {
				if entry := al.closureRemaining[a.Name]; len(entry) > 0 {
					kind = entry[0]
				}
			}
			args = append(args, al.argFor(a.Name, kind))
		}
	}
	delete(al.unusedParams, apply.Of)
	for _, a := range args {
		delete(al.unusedParams, a.Name)
	}

	al.locals[apply.Name] = true
	if !isFunc {
		return nil, NewError(Internal, fmt.Sprintf("%q does not resolve to a known function signature", apply.Of), apply.Span)
	}
	stmts = append(stmts, AirStmt{Op: &AirOp{
		Kind: OpNewClosure, Target: target, ClosureOf: apply.Of, Args: args, EnvEnd: apply.Name,
	}})
	if applied := len(args); applied < len(target.Params) {
		al.closureRemaining[apply.Name] = kindsOf(target.Params)[applied:]
	}
	return stmts, nil
}

// lowerClosureCurry implements §4.2.1's seven-step currying sequence for
// applying further arguments to an already-partial closure.
func (al *AirLowerer) lowerClosureCurry(apply *HApply) ([]AirStmt, error) {
	existingRemaining, ok := al.closureRemaining[apply.Of]
	if !ok {
		return nil, NewError(Internal, fmt.Sprintf("missing closure signature for %q", apply.Of), apply.Span)
	}

	stmts := al.prepareArgs(apply.Args)

	applied := len(apply.Args)
	if applied > len(existingRemaining) {
		applied = len(existingRemaining)
	}
	args := make([]AArg, len(apply.Args))
	for i, a := range apply.Args {
		kind := KInt
		if i < len(existingRemaining) {
			kind = existingRemaining[i]
		}
		args[i] = al.argFor(a.Name, kind)
	}
	delete(al.unusedParams, apply.Of)
	for _, a := range args {
		delete(al.unusedParams, a.Name)
	}

	al.locals[apply.Name] = true
	// step 2: CloneClosure src -> dst, preserving the remaining-kinds length
	stmts = append(stmts, AirStmt{Op: &AirOp{
		Kind: OpCloneClosure, CloneSrc: apply.Of, CloneDst: apply.Name, Remaining: existingRemaining,
	}})

	// step 3: secondary clone for any multiply-used closure-typed argument
	stored := make([]AArg, len(args))
	for i, a := range args {
		useCount := al.takeRemainingUse(a.Name)
		if a.Kind == KSig && useCount > 1 {
			argRemaining, ok := al.closureRemaining[a.Name]
			if !ok {
				return nil, NewError(Internal, fmt.Sprintf("missing closure signature for %q", a.Name), apply.Span)
			}
			cloneName := fmt.Sprintf("__%s_arg_clone_%d", apply.Name, i)
			stmts = append(stmts, AirStmt{Op: &AirOp{
				Kind: OpCloneClosure, CloneSrc: a.Name, CloneDst: cloneName, Remaining: argRemaining,
			}})
			stored[i] = AArg{Name: cloneName, Kind: a.Kind}
		} else {
			stored[i] = a
		}
	}

	// step 4: pin the env-end pointer of the freshly cloned closure
	envEnd := fmt.Sprintf("__%s_env_end", apply.Name)
	stmts = append(stmts, AirStmt{Op: &AirOp{
		Kind: OpPin, PinResult: envEnd, PinValue: AArg{Name: apply.Name},
	}})

	// step 5: SetField each newly-applied arg at its suffix offset
	suffixWords := suffixWordCounts(len(existingRemaining))
	for i := 0; i < applied; i++ {
		offset := suffixWords[i]
		stmts = append(stmts, AirStmt{Op: &AirOp{
			Kind: OpSetField, FieldPtr: envEnd, FieldOffset: -offset, FieldValue: stored[i],
		}})
	}

	// step 6: recompute and store the new num_remaining metadata word
	remaining := existingRemaining[applied:]
	stmts = append(stmts, AirStmt{Op: &AirOp{
		Kind:        OpSetField,
		FieldPtr:    envEnd,
		FieldOffset: numRemainingWordOffset,
		FieldValue:  AArg{Name: fmt.Sprintf("__%s_num_remaining_value", apply.Name), Kind: KInt, Literal: &Literal{IntVal: int64(len(remaining))}},
	}})

	// step 7: update the tracked remaining-kinds for the new binding
	al.closureRemaining[apply.Name] = remaining
	return stmts, nil
}

func suffixWordCounts(n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = n - i
	}
	return out
}

func (al *AirLowerer) consumeArgsAgainstSignature(params []HSigItem, args []HArg) []AArg {
	out := make([]AArg, 0, len(args))
	for i, a := range args {
		kind := KInt
		if i < len(params) {
			kind = params[i].Kind
		}
		out = append(out, al.argFor(a.Name, kind))
	}
	return out
}

func (al *AirLowerer) lowerExec(exec *HExec) ([]AirStmt, error) {
	al.takeRemainingUse(exec.Of)
	for _, a := range exec.Args {
		if !a.IsLiteral() {
			al.takeRemainingUse(a.Name)
		}
	}

	stmts := al.prepareArgs(exec.Args)

	if isArithmeticBuiltin(exec.Of) {
		args := al.consumeArgsPlain(exec.Args)
		delete(al.unusedParams, exec.Of)
		for _, a := range args {
			delete(al.unusedParams, a.Name)
		}
		stmts = append(stmts, al.takeReleaseStatements()...)
		opStmts, err := al.arithmeticBuiltinOps(exec.Of, args)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, opStmts...)
		return stmts, nil
	}

	if isInlineBuiltin(exec.Of) {
		args := al.consumeArgsPlain(exec.Args)
		delete(al.unusedParams, exec.Of)
		for _, a := range args {
			delete(al.unusedParams, a.Name)
		}
		stmts = append(stmts, al.takeReleaseStatements()...)
		op, err := comparisonBuiltinOp(exec.Of, args)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, AirStmt{Op: op})
		return stmts, nil
	}

	if isCallBuiltin(exec.Of) {
		args := al.consumeArgsPlain(exec.Args)
		delete(al.unusedParams, exec.Of)
		for _, a := range args {
			delete(al.unusedParams, a.Name)
		}
		stmts = append(stmts, al.takeReleaseStatements()...)
		stmts = append(stmts, AirStmt{Op: callBuiltinOp(exec.Of, args)})
		return stmts, nil
	}

	if exec.Of == "exit" {
		args := al.consumeArgsPlain(exec.Args)
		stmts = append(stmts, al.takeReleaseStatements()...)
		stmts = append(stmts, AirStmt{Op: &AirOp{Kind: OpSysExit, Inputs: args}})
		return stmts, nil
	}

	target, isFunc := al.resolveTarget(exec.Of)
	delete(al.unusedParams, exec.Of)
	stmts = append(stmts, al.takeReleaseStatements()...)
	if isFunc && !al.locals[exec.Of] {
		args := al.consumeArgsAgainstSignature(target.Params, exec.Args)
		for _, a := range args {
			delete(al.unusedParams, a.Name)
		}
		stmts = append(stmts, AirStmt{Op: &AirOp{Kind: OpJumpArgs, Target: target, Args: args}})
		return stmts, nil
	}

	args := al.consumeArgsPlain(exec.Args)
	for _, a := range args {
		delete(al.unusedParams, a.Name)
	}
	stmts = append(stmts, AirStmt{Op: &AirOp{Kind: OpJumpClosure, EnvEnd: exec.Of, Args: args}})
	return stmts, nil
}

func (al *AirLowerer) consumeArgsPlain(args []HArg) []AArg {
	out := make([]AArg, 0, len(args))
	for _, a := range args {
		kind := KInt
		if !a.IsLiteral() {
			if entry := al.closureRemaining[a.Name]; len(entry) > 0 {
				kind = entry[0]
			}
		} else if a.Literal.IsString {
			kind = KStr
		}
		out = append(out, al.argFor(a.Name, kind))
	}
	return out
}

// arithmeticBuiltinOps lowers add/sub/mul/div: a value-returning builtin
// call whose trailing argument is the continuation to resume with the
// computed value. Unlike a direct function call this never jumps to a
// statically-known label, so the result is staged through a synthesized
// temp and handed off via OpJumpClosure.
func (al *AirLowerer) arithmeticBuiltinOps(name string, args []AArg) ([]AirStmt, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("air: %s expects 2 operands and a continuation, got %d args", name, len(args))
	}
	cont := args[2]
	if cont.Name == "" {
		return nil, fmt.Errorf("air: %s continuation must be a bound closure, not a literal", name)
	}
	kinds := map[string]AirOpKind{"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv}
	kind, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("air: unknown arithmetic builtin %q", name)
	}
	temp := al.freshTemp()
	return []AirStmt{
		{Op: &AirOp{Kind: kind, Inputs: args[:2], Result: temp}},
		{Op: &AirOp{Kind: OpJumpClosure, EnvEnd: cont.Name, Args: []AArg{{Name: temp, Kind: KInt}}}},
	}, nil
}

// comparisonBuiltinOp lowers eq/eqi/eqs/lt/gt: these never resume a single
// continuation with a value. They branch, dispatching into one of two
// zero-argument continuations depending on the comparison's outcome.
func comparisonBuiltinOp(name string, args []AArg) (*AirOp, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("air: %s expects 2 operands and two continuations, got %d args", name, len(args))
	}
	trueCont, falseCont := args[2], args[3]
	if trueCont.Name == "" || falseCont.Name == "" {
		return nil, fmt.Errorf("air: %s continuations must be bound closures, not literals", name)
	}
	switch name {
	case "eq", "eqi":
		return &AirOp{Kind: OpBranchEqInt, EqArgs: args[:2], TrueTarget: trueCont.Name, FalseTarget: falseCont.Name}, nil
	case "eqs":
		return &AirOp{Kind: OpBranchEqStr, EqArgs: args[:2], TrueTarget: trueCont.Name, FalseTarget: falseCont.Name}, nil
	case "lt":
		return &AirOp{Kind: OpBranchLt, Left: args[0], Right: args[1], TrueTarget: trueCont.Name, FalseTarget: falseCont.Name}, nil
	case "gt":
		return &AirOp{Kind: OpBranchGt, Left: args[0], Right: args[1], TrueTarget: trueCont.Name, FalseTarget: falseCont.Name}, nil
	}
	return nil, fmt.Errorf("air: unknown comparison builtin %q", name)
}

func callBuiltinOp(name string, args []AArg) *AirOp {
	target := ""
	inputs := args
	if len(args) > 0 {
		target = args[len(args)-1].Name
		inputs = args[:len(args)-1]
	}
	switch name {
	case "itoa":
		return &AirOp{Kind: OpCallPtr, CallTarget: "itoa", Inputs: inputs, Result: target}
	case "printf":
		return &AirOp{Kind: OpPrintf, Inputs: inputs, Result: target}
	case "sprintf", "fmt":
		return &AirOp{Kind: OpSprintf, Inputs: inputs, Result: target}
	case "write", "rgo_write":
		return &AirOp{Kind: OpWrite, Inputs: inputs, Result: target}
	case "puts":
		return &AirOp{Kind: OpPuts, Inputs: inputs, Result: target}
	}
	return &AirOp{Kind: OpCallPtr, CallTarget: name, Inputs: inputs, Result: target}
}

// EntryFunction lowers every remaining top-level HBlockItem (everything
// but imports, sig defs, and already-lowered function defs) into the
// _start function's body.
func (al *AirLowerer) EntryFunction(items []HBlockItem) (*AirFunction, error) {
	al.locals = make(map[string]bool)
	al.closureRemaining = make(map[string][]HKind)
	al.unusedParams = make(map[string]bool)
	al.literals = make(map[string]*Literal)
	al.remainingUses = countBlockUses(items)
	al.tempCounter = 0

	var body []AirStmt
	for _, it := range items {
		if it.Import != nil || it.SigDef != nil || it.FunctionDef != nil {
			continue
		}
		stmts, err := al.lowerBlockItem(it)
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	return &AirFunction{Sig: &AFunctionSig{Name: "_start"}, Items: body}, nil
}
