package rgoc

import (
	"fmt"
	"strings"
)

// opCtx carries the per-function state codegen_ops.go's operation-lowering
// switch needs: where to write, the frame this function's locals live in,
// and the shared Artifacts (for string-literal / extern registration that
// only became known once an operation's literal operands are visited).
type opCtx struct {
	out       *strings.Builder
	frame     *FrameLayout
	artifacts *Artifacts
	fn        *AirFunction
	labelSeq  int
}

// uniqueLabel returns a label scoped to this function that won't collide
// across multiple comparison ops lowered within the same body.
func (c *opCtx) uniqueLabel(base string) string {
	c.labelSeq++
	return fmt.Sprintf("%s_%s%d", c.fn.Sig.Name, base, c.labelSeq)
}

func (c *opCtx) line(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "    "+format+"\n", args...)
}

// loadArg moves an argument's value into reg: a literal is moved as an
// immediate (or its rodata address, for strings); a binding is loaded
// from its frame slot.
func (c *opCtx) loadArg(reg string, a AArg) {
	if a.Literal != nil {
		if a.Literal.IsString {
			label := c.artifacts.LabelFor(a.Literal)
			c.artifacts.AddStringLiteral(label, a.Literal.StrVal)
			c.line("lea %s, [rel %s]", reg, label)
		} else {
			c.line("mov %s, %d", reg, a.Literal.IntVal)
		}
		return
	}
	c.line("mov %s, [rbp%d]", reg, c.frame.Slot(a.Name))
}

func (c *opCtx) storeReg(name, reg string) {
	c.line("mov [rbp%d], %s", c.frame.Slot(name), reg)
}

func (c *opCtx) emitOp(op *AirOp) error {
	switch op.Kind {
	case OpAdd, OpSub, OpMul, OpDiv:
		return c.emitArithmetic(op)
	case OpJumpGt:
		return c.emitJumpCompare(op, "jg")
	case OpBranchEqInt:
		return c.emitBranchEq(op, false)
	case OpBranchEqStr:
		return c.emitBranchEq(op, true)
	case OpBranchLt:
		return c.emitBranchCompare(op, "jl")
	case OpBranchGt:
		return c.emitBranchCompare(op, "jg")
	case OpJump:
		c.line("jmp %s", op.JumpTarget)
		return nil
	case OpNewClosure:
		return c.emitNewClosure(op)
	case OpCloneClosure:
		return c.emitCloneClosure(op)
	case OpPin:
		c.loadArg("rax", op.PinValue)
		c.storeReg(op.PinResult, "rax")
		return nil
	case OpField:
		c.line("mov rax, [rbp%d]", c.frame.Slot(op.FieldPtr))
		c.line("mov rax, [rax%+d]", op.FieldOffset*wordSize)
		c.storeReg(op.FieldResult, "rax")
		return nil
	case OpCopyField:
		c.line("mov rax, [rbp%d]", c.frame.Slot(op.FieldPtr))
		c.line("mov rax, [rax%+d]", op.FieldOffset*wordSize)
		c.storeReg(op.FieldResult, "rax")
		return nil
	case OpSetField:
		c.loadArg("rax", op.FieldValue)
		c.line("mov rbx, [rbp%d]", c.frame.Slot(op.FieldPtr))
		c.line("mov [rbx%+d], rax", op.FieldOffset*wordSize)
		return nil
	case OpReleaseHeap:
		c.line("mov rdi, [rbp%d]", c.frame.Slot(op.ReleaseName))
		c.line("call release_heap_ptr")
		return nil
	case OpDeepReleaseHeap:
		c.line("mov rdi, [rbp%d]", c.frame.Slot(op.ReleaseName))
		c.line("call deep_release_heap_ptr")
		return nil
	case OpCallPtr:
		if op.CallTarget != "" {
			for i, in := range op.Inputs {
				if i < len(argRegs) {
					c.loadArg(argRegs[i], in)
				}
			}
			if op.Result != "" {
				c.line("mov %s, [rbp%d]", closureEnvReg, c.frame.Slot(op.Result))
			}
			c.line("call %s", op.CallTarget)
		} else {
			c.line("mov rax, [rbp%d]", c.frame.Slot(op.Result))
			c.line("call rax")
		}
		return nil
	case OpJumpArgs:
		return c.emitJumpArgs(op)
	case OpJumpClosure:
		return c.emitJumpClosure(op)
	case OpPrintf, OpSprintf, OpWrite, OpPuts:
		return c.emitBuiltinCall(op)
	case OpSysExit:
		return c.emitSysExit(op)
	case OpReturn:
		if op.ReturnValue != "" {
			c.line("mov rax, [rbp%d]", c.frame.Slot(op.ReturnValue))
		}
		c.line("leave")
		c.line("ret")
		return nil
	default:
		return fmt.Errorf("codegen: unhandled AIR op kind %d", op.Kind)
	}
}

func (c *opCtx) emitArithmetic(op *AirOp) error {
	if len(op.Inputs) != 2 {
		return fmt.Errorf("codegen: arithmetic op expects 2 inputs, got %d", len(op.Inputs))
	}
	c.loadArg("rdi", op.Inputs[0])
	c.loadArg("rsi", op.Inputs[1])
	c.line("mov rax, rdi")
	switch op.Kind {
	case OpAdd:
		c.line("add rax, rsi")
	case OpSub:
		c.line("sub rax, rsi")
	case OpMul:
		c.line("imul rax, rsi")
	case OpDiv:
		c.line("cqo")
		c.line("idiv rsi")
	}
	c.storeReg(op.Result, "rax")
	return nil
}

// emitJumpCompare is the internal single-target conditional jump used by
// the deep-release and deep-copy helpers' num_remaining liveness guard
// (§4.2.2): a plain compare and jcc into a local label, not a closure
// dispatch.
func (c *opCtx) emitJumpCompare(op *AirOp, jcc string) error {
	c.loadArg("rax", op.Left)
	c.loadArg("rbx", op.Right)
	c.line("cmp rax, rbx")
	c.line("%s %s", jcc, op.JumpTarget)
	return nil
}

// emitJumpToClosure tail-dispatches into a bound closure by name, the same
// convention emitJumpClosure uses for an ordinary Exec-position call.
func (c *opCtx) emitJumpToClosure(envName string, args []AArg) {
	c.line("mov %s, [rbp%d]", closureEnvReg, c.frame.Slot(envName))
	c.line("mov rax, [%s%+d]", closureEnvReg, envMetaUnwrapperOffset-envMetaSize)
	for i, a := range args {
		if i+1 < len(argRegs) {
			c.loadArg(argRegs[i+1], a)
		}
	}
	c.line("leave")
	c.line("jmp rax")
}

// emitBranchEq lowers the eq/eqi/eqs builtins: compare the two operands
// and tail-dispatch into whichever of the two continuation closures the
// comparison selects. Neither branch ever falls through to the other.
func (c *opCtx) emitBranchEq(op *AirOp, isString bool) error {
	if len(op.EqArgs) != 2 {
		return fmt.Errorf("codegen: eq op expects 2 args, got %d", len(op.EqArgs))
	}
	falseLabel := c.uniqueLabel("eq_false")
	if isString {
		c.loadArg("rdi", op.EqArgs[0])
		c.loadArg("rsi", op.EqArgs[1])
		c.line("call internal_streq_helper")
		c.line("cmp rax, 0")
		c.line("je %s", falseLabel)
	} else {
		c.loadArg("rax", op.EqArgs[0])
		c.loadArg("rbx", op.EqArgs[1])
		c.line("cmp rax, rbx")
		c.line("jne %s", falseLabel)
	}
	c.emitJumpToClosure(op.TrueTarget, nil)
	c.line("%s:", falseLabel)
	c.emitJumpToClosure(op.FalseTarget, nil)
	return nil
}

// emitBranchCompare lowers the lt/gt builtins: same dual-continuation
// dispatch as emitBranchEq, but driven by a single jcc.
func (c *opCtx) emitBranchCompare(op *AirOp, jcc string) error {
	trueLabel := c.uniqueLabel("cmp_true")
	c.loadArg("rax", op.Left)
	c.loadArg("rbx", op.Right)
	c.line("cmp rax, rbx")
	c.line("%s %s", jcc, trueLabel)
	c.emitJumpToClosure(op.FalseTarget, nil)
	c.line("%s:", trueLabel)
	c.emitJumpToClosure(op.TrueTarget, nil)
	return nil
}

// emitNewClosure mmaps a fresh environment block sized for op.Args,
// writes the metadata words (§4.3.3), copies in the supplied arguments,
// and binds the resulting (code_ptr, env_end) pair under EnvEnd.
func (c *opCtx) emitNewClosure(op *AirOp) error {
	fieldCount := 0
	if op.Target != nil {
		fieldCount = len(op.Args)
	}
	heapSize := envMetaSize + fieldCount*wordSize
	c.line("mov rdi, 0")
	c.line("mov rsi, %d", heapSize)
	c.line("mov rdx, %d", protRead|protWrite)
	c.line("mov r10, %d", mapPrivate|mapAnonymous)
	c.line("mov r8, -1")
	c.line("xor r9, r9")
	c.line("mov rax, %d", syscallMmap)
	c.line("syscall")
	c.line("add rax, %d", heapSize-fieldCount*wordSize)
	c.line("mov rbx, rax")
	unwrapperLabel := closureUnwrapperLabel(op.ClosureOf)
	deepReleaseLabel := closureDeepReleaseLabel(op.ClosureOf)
	deepcopyLabel := closureDeepCopyLabel(op.ClosureOf)
	c.line("lea rax, [rel %s]", unwrapperLabel)
	c.line("mov [rbx%+d], rax", envMetaUnwrapperOffset-envMetaSize)
	c.line("mov qword [rbx%+d], %d", envMetaEnvSizeOffset-envMetaSize, envMetaSize)
	c.line("mov qword [rbx%+d], %d", envMetaHeapSizeOffset-envMetaSize, heapSize)
	c.line("mov qword [rbx%+d], %d", envMetaPointerCountOffset-envMetaSize, fieldCount)
	c.line("lea rax, [rel %s]", deepcopyLabel)
	c.line("mov [rbx%+d], rax", envMetaDeepCopyOffset-envMetaSize)
	c.line("lea rax, [rel %s]", deepReleaseLabel)
	c.line("mov [rbx%+d], rax", envMetaDeepReleaseOffset-envMetaSize)
	remaining := 0
	if op.Target != nil {
		remaining = len(op.Target.Params) - len(op.Args)
	}
	c.line("mov qword [rbx%+d], %d", envMetaNumRemainingOffset-envMetaSize, remaining)
	for i, a := range op.Args {
		c.loadArg("rax", a)
		c.line("mov [rbx+%d], rax", i*wordSize)
	}
	c.storeReg(op.EnvEnd, "rbx")
	return nil
}

// emitCloneClosure deep-copies a partially-applied closure's environment
// via the shared deepcopy_heap_ptr runtime helper (§4.3.4), so curry steps
// never alias the original binding's heap state.
func (c *opCtx) emitCloneClosure(op *AirOp) error {
	c.line("mov rdi, [rbp%d]", c.frame.Slot(op.CloneSrc))
	c.line("call deepcopy_heap_ptr")
	c.storeReg(op.CloneDst, "rax")
	return nil
}

// emitJumpArgs tail-calls a statically-known function: load each argument
// into its calling-convention register and jump to the target label.
func (c *opCtx) emitJumpArgs(op *AirOp) error {
	for i, a := range op.Args {
		if i < len(argRegs) {
			c.loadArg(argRegs[i], a)
		}
	}
	c.line("leave")
	c.line("jmp %s", op.Target.Name)
	return nil
}

// emitJumpClosure tail-calls a dynamically-bound closure value: marshal
// the closure's own env_end pointer plus the call's arguments, then jump
// through its code pointer.
func (c *opCtx) emitJumpClosure(op *AirOp) error {
	c.emitJumpToClosure(op.EnvEnd, op.Args)
	return nil
}

// emitBuiltinCall lowers printf/sprintf/write/puts: the continuation's
// env_end lives in a slot, not a register, so it survives the libc call
// untouched; afterward, dispatch into it the same way any other bound
// closure is invoked.
func (c *opCtx) emitBuiltinCall(op *AirOp) error {
	for i, in := range op.Inputs {
		if i < len(argRegs) {
			c.loadArg(argRegs[i], in)
		}
	}
	switch op.Kind {
	case OpPrintf:
		c.line("call printf")
	case OpSprintf:
		c.line("call sprintf")
	case OpWrite:
		c.line("call rgo_write")
	case OpPuts:
		c.line("call puts")
	}
	if op.Result != "" {
		c.emitJumpToClosure(op.Result, nil)
	}
	return nil
}

func (c *opCtx) emitSysExit(op *AirOp) error {
	code := AArg{Literal: &Literal{IntVal: 0}}
	if len(op.Inputs) > 0 {
		code = op.Inputs[0]
	}
	c.loadArg("rdi", code)
	c.line("leave")
	c.line("mov rax, 60")
	c.line("syscall")
	return nil
}
