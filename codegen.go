package rgoc

import (
	"fmt"
	"sort"
	"strings"
)

// Closure environment metadata layout (§4.3 data model, the canonicalized
// resolution of this spec's num_remaining Open Question): a closure value
// is a (code_ptr, env_end) pair; the words immediately after env_end carry
// unwrapper_ptr@0, env_size@WORD, heap_size@2*WORD, pointer_count@3*WORD,
// deepcopy_ptr@4*WORD, deep_release_ptr@5*WORD, num_remaining@6*WORD.
const (
	wordSize                 = 8
	envMetaUnwrapperOffset   = 0
	envMetaEnvSizeOffset     = wordSize
	envMetaHeapSizeOffset    = wordSize * 2
	envMetaPointerCountOffset = wordSize * 3
	envMetaDeepCopyOffset    = wordSize * 4
	envMetaDeepReleaseOffset = wordSize * 5
	envMetaNumRemainingOffset = wordSize * numRemainingWordOffset
	envMetaSize              = wordSize * 7

	syscallMmap  = 9
	syscallMunmap = 11
	syscallExit  = 60
	syscallWrite = 1

	stdoutFd = 1

	protRead      = 1
	protWrite     = 2
	mapPrivate    = 2
	mapAnonymous  = 32
)

// argRegs is the 12-register calling convention (§4.3.2), deliberately
// not SysV: every user-level call passes its args, one register per
// argument, with two registers consumed per closure-typed argument
// (code pointer, then env_end pointer).
var argRegs = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}

const closureEnvReg = "r15"

// Artifacts accumulates the cross-function emission state: string literal
// data and the sorted set of extern symbols a translation unit needs.
type Artifacts struct {
	literals     []stringLiteral
	literalSeen  map[string]bool
	literalLabel map[*Literal]string
	externs      map[string]bool
	nextLiteral  int
}

type stringLiteral struct {
	Label string
	Value string
}

func NewArtifacts() *Artifacts {
	return &Artifacts{
		literalSeen:  make(map[string]bool),
		literalLabel: make(map[*Literal]string),
		externs:      make(map[string]bool),
	}
}

// AddStringLiteral dedups strictly by label identity, per the resolved
// Open Question on string literal dedup: the first call under a label
// wins, there is no content-based merging.
func (a *Artifacts) AddStringLiteral(label, value string) string {
	if !a.literalSeen[label] {
		a.literalSeen[label] = true
		a.literals = append(a.literals, stringLiteral{Label: label, Value: value})
	}
	return label
}

// LabelFor returns the rodata label for one string literal occurrence,
// identified by the *Literal node's own identity rather than its text:
// two occurrences with identical content never share a label, and the
// two codegen passes (collectArtifacts, then emitFunction) agree on the
// same label for the same occurrence because both walk the same AIR tree
// and so see the same *Literal pointer.
func (a *Artifacts) LabelFor(lit *Literal) string {
	if label, ok := a.literalLabel[lit]; ok {
		return label
	}
	label := fmt.Sprintf("str_%d", a.nextLiteral)
	a.nextLiteral++
	a.literalLabel[lit] = label
	return label
}

func (a *Artifacts) AddExtern(name string) { a.externs[name] = true }

func (a *Artifacts) SortedExterns() []string {
	out := make([]string, 0, len(a.externs))
	for e := range a.externs {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// FrameLayout assigns each distinct local name of a function an 8-byte
// stack slot, rbp-relative and negative, per §4.3.1; StackSize rounds the
// total up to a multiple of 16.
type FrameLayout struct {
	slots      map[string]int
	nextOffset int
}

func NewFrameLayout() *FrameLayout {
	return &FrameLayout{slots: make(map[string]int)}
}

func (f *FrameLayout) Slot(name string) int {
	if off, ok := f.slots[name]; ok {
		return off
	}
	f.nextOffset += wordSize
	f.slots[name] = -f.nextOffset
	return f.slots[name]
}

func alignTo16(n int) int {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}

func (f *FrameLayout) StackSize() int { return alignTo16(f.nextOffset) }

// CodeGenerator drives the two-pass text emission: pass one walks every
// function's ops to populate the Artifacts (string literals, externs),
// pass two emits the NASM text proper, so forward-referenced rodata
// labels and extern declarations are always complete before first use.
type CodeGenerator struct {
	artifacts *Artifacts
	config    *Config
}

func NewCodegen(cfg *Config) *CodeGenerator {
	return &CodeGenerator{artifacts: NewArtifacts(), config: cfg}
}

// Emit produces the complete NASM translation unit for a fully-lowered
// program: one _start entry plus every user/generated/runtime function.
func (cg *CodeGenerator) Emit(funcs []*AirFunction) (string, error) {
	for _, fn := range funcs {
		cg.collectArtifacts(fn)
	}
	cg.artifacts.AddExtern("memcpy_helper")
	cg.artifacts.AddExtern("release_heap_ptr")
	cg.artifacts.AddExtern("deep_release_heap_ptr")
	cg.artifacts.AddExtern("deepcopy_heap_ptr")
	cg.artifacts.AddExtern("rgo_write")

	var out strings.Builder
	out.WriteString("bits 64\n")
	out.WriteString("default rel\n")
	out.WriteString("section .text\n")
	for _, e := range cg.artifacts.SortedExterns() {
		fmt.Fprintf(&out, "extern %s\n", e)
	}
	out.WriteString("\n")

	for _, fn := range funcs {
		if err := cg.emitFunction(&out, fn); err != nil {
			return "", err
		}
	}

	emitRuntimeHelpers(&out, cg.artifacts)

	if len(cg.artifacts.literals) > 0 {
		out.WriteString("\nsection .rodata\n")
		for _, lit := range cg.artifacts.literals {
			fmt.Fprintf(&out, "%s: db %s, 0\n", lit.Label, nasmStringBytes(lit.Value))
		}
	}

	return out.String(), nil
}

func nasmStringBytes(s string) string {
	return fmt.Sprintf("%q", s)
}

func (cg *CodeGenerator) collectArtifacts(fn *AirFunction) {
	for _, stmt := range fn.Items {
		if stmt.Op == nil {
			continue
		}
		op := stmt.Op
		for _, arg := range op.Inputs {
			cg.noteLiteral(arg)
		}
		for _, arg := range op.EqArgs {
			cg.noteLiteral(arg)
		}
		cg.noteLiteral(op.Left)
		cg.noteLiteral(op.Right)
		cg.noteLiteral(op.PinValue)
		cg.noteLiteral(op.FieldValue)
		if op.Kind == OpCallPtr && op.CallTarget != "" && !isLocalHelperCall(op.CallTarget) {
			cg.artifacts.AddExtern(op.CallTarget)
		}
	}
}

func isLocalHelperCall(name string) bool {
	return strings.HasSuffix(name, "_deep_release") || strings.HasSuffix(name, "_deepcopy") || strings.HasSuffix(name, "_unwrapper")
}

// noteLiteral registers one string literal occurrence under its own label,
// keyed by the *Literal node's identity rather than its content: two
// occurrences with identical text are two distinct literals (per the
// resolved Open Question on string literal dedup in §9 and
// AddStringLiteral's own doc comment), never collapsed onto one label.
func (cg *CodeGenerator) noteLiteral(a AArg) {
	if a.Literal != nil && a.Literal.IsString {
		label := cg.artifacts.LabelFor(a.Literal)
		cg.artifacts.AddStringLiteral(label, a.Literal.StrVal)
	}
}

func (cg *CodeGenerator) emitFunction(out *strings.Builder, fn *AirFunction) error {
	frame := NewFrameLayout()
	for i, p := range fn.Sig.Params {
		if i < len(argRegs) {
			frame.Slot(p.Name)
		}
	}
	for _, stmt := range fn.Items {
		if stmt.Op != nil {
			reserveSlotsForOp(frame, stmt.Op)
		}
	}

	isEntry := fn.Sig.Name == "_start"

	fmt.Fprintf(out, "global %s\n%s:\n", fn.Sig.Name, fn.Sig.Name)
	if !isEntry {
		out.WriteString("    push rbp\n    mov rbp, rsp\n")
	} else {
		out.WriteString("    mov rbp, rsp\n")
	}
	if size := frame.StackSize(); size > 0 {
		fmt.Fprintf(out, "    sub rsp, %d\n", size)
	}
	for i, p := range fn.Sig.Params {
		if i < len(argRegs) {
			fmt.Fprintf(out, "    mov [rbp%d], %s\n", frame.Slot(p.Name), argRegs[i])
		}
	}

	ctx := &opCtx{out: out, frame: frame, artifacts: cg.artifacts, fn: fn}
	for _, stmt := range fn.Items {
		if stmt.Label != "" {
			fmt.Fprintf(out, "%s:\n", stmt.Label)
			continue
		}
		if err := ctx.emitOp(stmt.Op); err != nil {
			return err
		}
	}
	if isEntry {
		emitEntryPointFallthrough(out)
	}
	out.WriteString("\n")
	return nil
}

func reserveSlotsForOp(frame *FrameLayout, op *AirOp) {
	reserve := func(name string) {
		if name != "" {
			frame.Slot(name)
		}
	}
	reserve(op.ReturnValue)
	reserve(op.Result)
	reserve(op.PinResult)
	reserve(op.CloneDst)
	reserve(op.FieldResult)
	reserve(op.EnvEnd)
	reserve(op.ClosureOf)
	reserve(op.TrueTarget)
	reserve(op.FalseTarget)
	for _, a := range op.Args {
		reserve(a.Name)
	}
}

// emitEntryPointFallthrough is appended after _start's lowered body: if
// control ever falls off the end (the program's top level never called
// exit explicitly), exit cleanly with status 0.
func emitEntryPointFallthrough(out *strings.Builder) {
	out.WriteString("    mov rax, 60\n    xor rdi, rdi\n    syscall\n")
}
