package rgoc

import "fmt"

// This file builds the per-function helper triad from §4.2.2: a closure
// always carries exactly one word per captured/curried field, so offsets
// and word counts fall directly out of a parameter's index.

func envWordCount(params []HSigItem) int { return len(params) }

func envWordOffsets(params []HSigItem) []int {
	out := make([]int, len(params))
	for i := range params {
		out[i] = i
	}
	return out
}

func isReferenceKind(k HKind) bool { return k == KSig }

func closureUnwrapperLabel(name string) string  { return name + "_unwrapper" }
func closureDeepReleaseLabel(name string) string { return name + "_deep_release" }
func closureDeepCopyLabel(name string) string    { return name + "_deepcopy" }

// buildClosureUnwrapper builds `{f}_unwrapper`: given an env-end pointer,
// it unpacks every captured/curried field back out as a named binding and
// tail-jumps into f with them, releasing the environment's own heap block
// immediately (the fields it just read survive in registers).
func buildClosureUnwrapper(fn *AirFunction) *AirFunction {
	envParam := HSigItem{Name: "env_end", Kind: KInt}
	wordCount := envWordCount(fn.Sig.Params)
	offsets := envWordOffsets(fn.Sig.Params)

	items := make([]AirStmt, 0, len(fn.Sig.Params)+2)
	items = append(items, AirStmt{Op: &AirOp{Kind: OpPin, PinResult: "__env_end", PinValue: AArg{Name: envParam.Name}}})
	for i, p := range fn.Sig.Params {
		items = append(items, AirStmt{Op: &AirOp{
			Kind: OpField, FieldResult: p.Name, FieldPtr: "__env_end", FieldOffset: offsets[i] - wordCount, FieldKind: p.Kind,
		}})
	}
	items = append(items, AirStmt{Op: &AirOp{Kind: OpReleaseHeap, ReleaseName: "__env_end"}})

	args := make([]AArg, len(fn.Sig.Params))
	for i, p := range fn.Sig.Params {
		args[i] = AArg{Name: p.Name, Kind: p.Kind}
	}
	items = append(items, AirStmt{Op: &AirOp{Kind: OpJumpArgs, Target: fn.Sig, Args: args}})

	return &AirFunction{
		Sig:   &AFunctionSig{Name: closureUnwrapperLabel(fn.Sig.Name), Params: []HSigItem{envParam}, Span: fn.Sig.Span},
		Items: items,
	}
}

// buildDeepReleaseHelper builds `{f}_deep_release`: releases every
// closure-typed field of the environment that is still live (its liveness
// tested against the num_remaining metadata word, per the resolved Open
// Question that this word is the sole canonicalized liveness guard), then
// releases the environment block itself.
func buildDeepReleaseHelper(fn *AirFunction) *AirFunction {
	if !anyReferenceParam(fn.Sig.Params) {
		envParam := HSigItem{Name: "env_end", Kind: KInt}
		items := []AirStmt{
			{Op: &AirOp{Kind: OpPin, PinResult: "__env_end", PinValue: AArg{Name: envParam.Name}}},
			{Op: &AirOp{Kind: OpReleaseHeap, ReleaseName: "__env_end"}},
			{Op: &AirOp{Kind: OpReturn}},
		}
		return &AirFunction{
			Sig:   &AFunctionSig{Name: closureDeepReleaseLabel(fn.Sig.Name), Params: []HSigItem{envParam}, Span: fn.Sig.Span},
			Items: items,
		}
	}

	envParam := HSigItem{Name: "env_end", Kind: KInt}
	wordCount := envWordCount(fn.Sig.Params)
	offsets := envWordOffsets(fn.Sig.Params)

	items := []AirStmt{
		{Op: &AirOp{Kind: OpPin, PinResult: "__env_end", PinValue: AArg{Name: envParam.Name}}},
		{Op: &AirOp{Kind: OpField, FieldResult: "__num_remaining", FieldPtr: "__env_end", FieldOffset: numRemainingWordOffset, FieldKind: KInt}},
	}
	for i, p := range fn.Sig.Params {
		if !isReferenceKind(p.Kind) {
			continue
		}
		offset := offsets[i] - wordCount
		offsetFromEnd := wordCount - offsets[i]
		skipLabel := fmt.Sprintf("%s_release_skip_%d", fn.Sig.Name, i)
		location := fmt.Sprintf("%s_release_field_%d", fn.Sig.Name, i)
		items = append(items,
			AirStmt{Op: &AirOp{Kind: OpJumpGt, Left: AArg{Name: "__num_remaining"}, Right: AArg{Literal: &Literal{IntVal: int64(offsetFromEnd - 1)}}, JumpTarget: skipLabel}},
			AirStmt{Op: &AirOp{Kind: OpField, FieldResult: location, FieldPtr: "__env_end", FieldOffset: offset, FieldKind: p.Kind}},
			AirStmt{Op: &AirOp{Kind: OpCallPtr, Result: location}},
			AirStmt{Label: skipLabel},
		)
	}
	items = append(items,
		AirStmt{Op: &AirOp{Kind: OpReleaseHeap, ReleaseName: "__env_end"}},
		AirStmt{Op: &AirOp{Kind: OpReturn}},
	)

	return &AirFunction{
		Sig:   &AFunctionSig{Name: closureDeepReleaseLabel(fn.Sig.Name), Params: []HSigItem{envParam}, Span: fn.Sig.Span},
		Items: items,
	}
}

// buildDeepCopyHelper builds `{f}_deepcopy`: allocates a fresh environment
// block of identical shape, copies every scalar field across, and for each
// live closure-typed field (the same num_remaining guard the deep-release
// helper uses) calls that field's own deepcopy helper instead of copying
// the pointer verbatim, so two curry chains never alias heap state. A
// closure-typed field that is not live is skipped.
func buildDeepCopyHelper(fn *AirFunction) *AirFunction {
	envParam := HSigItem{Name: "env_end", Kind: KInt}
	wordCount := envWordCount(fn.Sig.Params)
	offsets := envWordOffsets(fn.Sig.Params)

	items := []AirStmt{
		{Op: &AirOp{Kind: OpPin, PinResult: "__src_env_end", PinValue: AArg{Name: envParam.Name}}},
		{Op: &AirOp{Kind: OpNewClosure, ClosureOf: fn.Sig.Name, EnvEnd: "__dst_env_end", Target: fn.Sig}},
		{Op: &AirOp{Kind: OpField, FieldResult: "__num_remaining", FieldPtr: "__src_env_end", FieldOffset: numRemainingWordOffset, FieldKind: KInt}},
	}
	for i, p := range fn.Sig.Params {
		offset := offsets[i] - wordCount
		field := fmt.Sprintf("__deepcopy_field_%d", i)
		skipLabel := ""
		if isReferenceKind(p.Kind) {
			skipLabel = fmt.Sprintf("%s_copy_skip_%d", fn.Sig.Name, i)
			items = append(items, AirStmt{Op: &AirOp{Kind: OpJumpGt, Left: AArg{Name: "__num_remaining"}, Right: AArg{Literal: &Literal{IntVal: int64(wordCount - offsets[i] - 1)}}, JumpTarget: skipLabel}})
		}
		items = append(items, AirStmt{Op: &AirOp{
			Kind: OpField, FieldResult: field, FieldPtr: "__src_env_end", FieldOffset: offset, FieldKind: p.Kind,
		}})
		if isReferenceKind(p.Kind) {
			cloned := fmt.Sprintf("__deepcopy_clone_%d", i)
			items = append(items, AirStmt{Op: &AirOp{
				Kind: OpCloneClosure, CloneSrc: field, CloneDst: cloned, Remaining: nil,
			}})
			field = cloned
		}
		items = append(items, AirStmt{Op: &AirOp{
			Kind: OpSetField, FieldPtr: "__dst_env_end", FieldOffset: offset, FieldValue: AArg{Name: field, Kind: p.Kind},
		}})
		if skipLabel != "" {
			items = append(items, AirStmt{Label: skipLabel})
		}
	}
	items = append(items, AirStmt{Op: &AirOp{Kind: OpReturn, ReturnValue: "__dst_env_end"}})

	return &AirFunction{
		Sig:   &AFunctionSig{Name: closureDeepCopyLabel(fn.Sig.Name), Params: []HSigItem{envParam}, Span: fn.Sig.Span},
		Items: items,
	}
}

func anyReferenceParam(params []HSigItem) bool {
	for _, p := range params {
		if isReferenceKind(p.Kind) {
			return true
		}
	}
	return false
}
