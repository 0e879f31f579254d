package rgoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitItoaRestoresClosureEnvFromStackBeforeDispatch(t *testing.T) {
	var out strings.Builder
	a := NewArtifacts()
	emitItoa(&out, a)
	text := out.String()

	assert.Contains(t, text, "global itoa\nitoa:\n")
	assert.NotContains(t, text, "push rsi", "itoa must not expect its caller to preload a raw code pointer into rsi")
	assert.Contains(t, text, "mov r15, [rbp-8]", "closureEnvReg is restored from the single value pushed in the prologue")
	assert.Contains(t, text, "mov rsi, r8", "the computed string pointer is handed to the continuation as its sole argument")
	assert.True(t, strings.Contains(text, "leave\n    jmp rax"))
}

func TestEmitItoaRegistersMinValueStringLiteral(t *testing.T) {
	var out strings.Builder
	a := NewArtifacts()
	emitItoa(&out, a)
	require.Len(t, a.literals, 1)
	assert.Equal(t, "-9223372036854775808", a.literals[0].Value)
}

func TestEmitReleaseHeapPtrIsGloballyVisible(t *testing.T) {
	var out strings.Builder
	emitReleaseHeapPtr(&out)
	assert.Contains(t, out.String(), "global release_heap_ptr")
	assert.Contains(t, out.String(), "syscall")
}

func TestEmitDeepcopyHeapPtrCallsFieldDeepcopyPointer(t *testing.T) {
	var out strings.Builder
	emitDeepcopyHeapPtr(&out)
	text := out.String()
	assert.Contains(t, text, "global deepcopy_heap_ptr")
	assert.Contains(t, text, "call memcpy_helper")
	assert.Contains(t, text, "call rax", "dispatches into the copied environment's own deepcopy helper")
}

func TestEmitMemcpyHelperLoopsUntilLengthReached(t *testing.T) {
	var out strings.Builder
	emitMemcpyHelper(&out)
	text := out.String()
	assert.Contains(t, text, "internal_memcpy_loop:")
	assert.Contains(t, text, "jge internal_memcpy_done")
}

func TestEmitRuntimeHelpersEmitsCoreFourInOrder(t *testing.T) {
	var out strings.Builder
	a := NewArtifacts()
	emitRuntimeHelpers(&out, a)
	text := out.String()

	releaseIdx := strings.Index(text, "global release_heap_ptr")
	deepcopyIdx := strings.Index(text, "global deepcopy_heap_ptr")
	memcpyIdx := strings.Index(text, "global memcpy_helper")
	itoaIdx := strings.Index(text, "global itoa")

	require.True(t, releaseIdx >= 0 && deepcopyIdx >= 0 && memcpyIdx >= 0 && itoaIdx >= 0)
	assert.True(t, releaseIdx < deepcopyIdx)
	assert.True(t, deepcopyIdx < memcpyIdx)
	assert.True(t, memcpyIdx < itoaIdx)
}
