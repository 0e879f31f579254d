package rgoc

// This file defines the AIR: the assembly-oriented IR produced by the AIR
// lowerer and consumed by codegen. Every remaining abstraction from HIR
// (curried partial application, implicit closure lifetime) has been made
// explicit as a sequence of operations codegen can emit one-to-one.

// AFunctionSig is an AIR-level function signature: a flat parameter list
// plus the name codegen will use for its label.
type AFunctionSig struct {
	Name   string
	Params []HSigItem
	Span   Span
}

func (s *AFunctionSig) IsVariadic() bool {
	for _, p := range s.Params {
		if p.Kind == KVariadic {
			return true
		}
	}
	return false
}

// AArg is one resolved argument to an AIR operation: either a stack/frame
// binding by name or an inline literal.
type AArg struct {
	Name    string
	Kind    HKind
	Literal *Literal
}

func (a AArg) IsLiteral() bool { return a.Literal != nil }

// AirStmt is one statement inside an AirFunction's body: a label or an op.
type AirStmt struct {
	Label string // set for a label statement
	Op    *AirOp // set for an operation statement
}

// AirFunction is one fully lowered function, ready for two-pass codegen.
type AirFunction struct {
	Sig   *AFunctionSig
	Items []AirStmt
}

// AirOpKind discriminates the AirOp union. Each op kind below corresponds
// to exactly one case in codegen's operation-lowering switch (§4.3.3).
type AirOpKind int

const (
	OpReturn AirOpKind = iota
	OpJump
	OpJumpArgs
	OpJumpClosure
	OpJumpGt
	OpBranchEqInt
	OpBranchEqStr
	OpBranchLt
	OpBranchGt
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpSysExit
	OpPrintf
	OpSprintf
	OpWrite
	OpPuts
	OpCallPtr
	OpNewClosure
	OpCloneClosure
	OpReleaseHeap
	OpDeepReleaseHeap
	OpPin
	OpField
	OpCopyField
	OpSetField
)

// AirOp is a single AIR operation. Only the fields relevant to Kind are
// populated; this mirrors a tagged union with one struct per variant,
// flattened into a single type to keep codegen's dispatch a plain switch.
type AirOp struct {
	Kind AirOpKind
	Span Span

	// Return
	ReturnValue string // empty if void

	// Jump / JumpGt (internal single-label conditional, §4.2.2 num_remaining liveness guard)
	JumpTarget string

	// JumpArgs / JumpClosure / NewClosure
	Target    *AFunctionSig
	EnvEnd    string
	Args      []AArg
	ArgKinds  []HKind
	ClosureOf string // the lowered function name a NewClosure instantiates

	// BranchEqInt / BranchEqStr / BranchLt / BranchGt: the two compared
	// operands, and the two closures to tail-dispatch into depending on
	// the outcome. Comparison builtins never return; they branch.
	EqArgs      []AArg
	Left, Right AArg
	TrueTarget  string
	FalseTarget string

	// Add / Sub / Mul / Div / Printf / Sprintf / Write / Puts / SysExit
	Inputs []AArg
	Result string

	// CallPtr
	CallTarget string

	// CloneClosure
	CloneSrc, CloneDst string
	Remaining          []HKind

	// ReleaseHeap (raw munmap only) / DeepReleaseHeap (dispatches through
	// the environment's own deep_release_ptr first, so any live
	// closure-typed fields are released recursively before the block is)
	ReleaseName string

	// Pin
	PinResult string
	PinValue  AArg

	// Field / CopyField / SetField
	FieldResult string
	FieldPtr    string
	FieldOffset int
	FieldKind   HKind
	FieldValue  AArg
}
