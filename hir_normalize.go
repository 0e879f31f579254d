package rgoc

// normalizeFixedPoint implements §4.1.1: apply-into-apply and
// apply-into-exec inlining run to a fixed point, then every remaining
// call whose target carries recorded captures gets a synthesized
// temporary binding that supplies them.
func (l *Lowerer) normalizeFixedPoint(items []HBlockItem) []HBlockItem {
	items = mergeApplies(items)
	items = l.injectCaptureTemps(items)
	return items
}

func countApplyUses(items []HBlockItem) map[string]int {
	counts := make(map[string]int)
	mark := func(name string) {
		if name != "" {
			counts[name]++
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
	return counts
}

func findUseOf(items []HBlockItem, name string) (int, bool) {
	for i, it := range items {
		if it.ApplyDef != nil && it.ApplyDef.Of == name {
			return i, true
		}
		if it.Exec != nil && it.Exec.Of == name {
			return i, true
		}
	}
	return -1, false
}

func removeAt(items []HBlockItem, i int) []HBlockItem {
	out := make([]HBlockItem, 0, len(items)-1)
	out = append(out, items[:i]...)
	out = append(out, items[i+1:]...)
	return out
}

// mergeApplies inlines any ApplyDef used exactly once, either as the
// target of another ApplyDef or of an Exec, folding its own args in ahead
// of the consumer's.
func mergeApplies(items []HBlockItem) []HBlockItem {
	for {
		changed := false
		usage := countApplyUses(items)
		for i, it := range items {
			if it.ApplyDef == nil {
				continue
			}
			name := it.ApplyDef.Name
			if usage[name] != 1 {
				continue
			}
			useIdx, found := findUseOf(items, name)
			if !found || useIdx <= i {
				continue
			}
			target := items[useIdx]
			switch {
			case target.ApplyDef != nil && target.ApplyDef.Of == name:
				target.ApplyDef.Of = it.ApplyDef.Of
				target.ApplyDef.Args = append(append([]HArg{}, it.ApplyDef.Args...), target.ApplyDef.Args...)
			case target.Exec != nil && target.Exec.Of == name:
				target.Exec.Of = it.ApplyDef.Of
				target.Exec.Args = append(append([]HArg{}, it.ApplyDef.Args...), target.Exec.Args...)
			default:
				continue
			}
			items = removeAt(items, i)
			changed = true
			break
		}
		if !changed {
			return items
		}
	}
}

// injectCaptureTemps rewrites a call into a captured function so that the
// captures travel explicitly: `name(args...)` where `name` carries
// recorded captures becomes `__cap <- name(captures...)` followed by the
// original call rewritten to target `__cap`.
//
// A function's own captures are already bound under their original names
// within its own body (they arrive as leading parameters with unchanged
// names), so a direct self-recursive call needs no rewriting here — its
// captures are already in scope by the time this pass runs.
func (l *Lowerer) injectCaptureTemps(items []HBlockItem) []HBlockItem {
	out := make([]HBlockItem, 0, len(items))
	for _, it := range items {
		var target *string
		switch {
		case it.ApplyDef != nil:
			target = &it.ApplyDef.Of
		case it.Exec != nil:
			target = &it.Exec.Of
		}
		if target != nil {
			if captures := l.scope.FunctionCaptures(*target); len(captures) > 0 {
				tmp := l.scope.NewName("cap")
				capArgs := make([]HArg, len(captures))
				for i, c := range captures {
					capArgs[i] = HArg{Name: c}
				}
				out = append(out, HBlockItem{
					ApplyDef: &HApply{Name: tmp, Of: *target, Args: capArgs, Span: it.Span},
					Span:     it.Span,
				})
				*target = tmp
			}
		}
		out = append(out, it)
	}
	return out
}

// freeNames collects every name referenced by items that isn't in locals
// and isn't itself defined somewhere within items (a LitDef or ApplyDef
// target), in first-encounter order.
func freeNames(items []HBlockItem, locals map[string]bool) []string {
	defined := make(map[string]bool, len(locals))
	for k := range locals {
		defined[k] = true
	}
	for _, it := range items {
		if it.LitDef != nil {
			defined[it.LitDef.Name] = true
		}
		if it.ApplyDef != nil {
			defined[it.ApplyDef.Name] = true
		}
	}

	seen := make(map[string]bool)
	var free []string
	note := func(name string) {
		if name == "" || defined[name] || seen[name] {
			return
		}
		seen[name] = true
		free = append(free, name)
	}
	for _, it := range items {
		if it.ApplyDef != nil {
			note(it.ApplyDef.Of)
			for _, a := range it.ApplyDef.Args {
				if !a.IsLiteral() {
					note(a.Name)
				}
			}
		}
		if it.Exec != nil {
			note(it.Exec.Of)
			for _, a := range it.Exec.Args {
				if !a.IsLiteral() {
					note(a.Name)
				}
			}
		}
	}
	return free
}
