package rgoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lowerSource(t *testing.T, src string) []HBlockItem {
	t.Helper()
	block, err := NewParser([]byte(src)).ParseProgram()
	require.NoError(t, err)

	registry := NewSymbolRegistry()
	l := NewLowerer(registry)
	for _, item := range block.Items {
		require.NoError(t, l.Consume(item))
	}
	return l.Finish()
}

func TestLowerImportEmitsHImport(t *testing.T) {
	items := lowerSource(t, `int: @/int`)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Import)
	assert.Equal(t, "int", items[0].Import.Label)
}

func TestLowerLitDefEmitsHLitDef(t *testing.T) {
	items := lowerSource(t, `answer: 42`)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].LitDef)
	assert.Equal(t, int64(42), items[0].LitDef.Literal.IntVal)
}

func TestLowerIdentDefAliasProducesNoApply(t *testing.T) {
	items := lowerSource(t, `x: 1
y: x`)
	require.Len(t, items, 1, "a bare alias with no args must not emit an ApplyDef")
	assert.Equal(t, "x", items[0].LitDef.Name)
}

func TestLowerIdentDefPartialApplicationEmitsHApply(t *testing.T) {
	items := lowerSource(t, `greet: (a:str, b:str, c:str) { write(a, (){ write(b, (){ write(c, done) }) }) }
greet_ab: greet("a", "b")`)
	var apply *HApply
	for _, it := range items {
		if it.ApplyDef != nil && it.ApplyDef.Name == "greet_ab" {
			apply = it.ApplyDef
		}
	}
	require.NotNil(t, apply)
	assert.Equal(t, "greet", apply.Of)
	require.Len(t, apply.Args, 2)
}

func TestLowerSigDefRecordsSignatureOnlyEntry(t *testing.T) {
	items := lowerSource(t, `run: (n:int)`)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].SigDef)
	assert.Equal(t, "run", items[0].SigDef.Name)
}

func TestLowerFunctionDefProducesNamedHFunction(t *testing.T) {
	items := lowerSource(t, `double: (x:int, k:(int)) { add(x, x, k) }`)
	var fn *HFunction
	for _, it := range items {
		if it.FunctionDef != nil {
			fn = it.FunctionDef.Fn
		}
	}
	require.NotNil(t, fn)
	assert.Equal(t, "double", fn.Name)
	require.Len(t, fn.Sig.Items, 2)
	assert.Equal(t, "x", fn.Sig.Items[0].Name)
	assert.Equal(t, "k", fn.Sig.Items[1].Name)
}

func TestLowerFunctionDefCapturesFreeOuterName(t *testing.T) {
	items := lowerSource(t, `outer: (x:int, k:(int)) {
	(r:int){ add(x, r, k) }
}`)
	var nested *HFunction
	for _, it := range items {
		if it.FunctionDef != nil && it.FunctionDef.Fn.Name != "outer" {
			nested = it.FunctionDef.Fn
		}
	}
	require.NotNil(t, nested, "the nested lambda must be lowered to its own named HFunction")
	require.NotEmpty(t, nested.Sig.Items)
	assert.Equal(t, "x", nested.Sig.Items[0].Name, "the captured outer param must be prepended to the nested function's signature")
}

func TestLowerExecIdentEmitsHExec(t *testing.T) {
	items := lowerSource(t, `write("hi", cont)`)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Exec)
	assert.Equal(t, "write", items[0].Exec.Of)
	require.Len(t, items[0].Exec.Args, 2)
	assert.Equal(t, "hi", items[0].Exec.Args[0].Literal.StrVal)
}

func TestLowerScopeCaptureDesugarsToExecWithSynthesizedLambda(t *testing.T) {
	items := lowerSource(t, `(res:int) = add(1, 2) { write(res, cont) }`)
	var execOnAdd, lambdaFn *HFunction
	var exec *HExec
	for _, it := range items {
		if it.FunctionDef != nil {
			lambdaFn = it.FunctionDef.Fn
		}
		if it.Exec != nil {
			exec = it.Exec
		}
	}
	require.NotNil(t, exec)
	assert.Equal(t, "add", exec.Of)
	require.Len(t, exec.Args, 3, "the two literal args plus the synthesized continuation")
	require.NotNil(t, lambdaFn, "the continuation body must lower to its own HFunction")
	_ = execOnAdd
}

func TestLowerArgTermHoistsNestedCallIntoApplyDef(t *testing.T) {
	items := lowerSource(t, `write(itoa(42), cont)`)
	var tempApply *HApply
	var exec *HExec
	for _, it := range items {
		if it.ApplyDef != nil {
			tempApply = it.ApplyDef
		}
		if it.Exec != nil {
			exec = it.Exec
		}
	}
	require.NotNil(t, tempApply, "a nested call used as an argument must be hoisted into a preceding ApplyDef")
	assert.Equal(t, "itoa", tempApply.Of)
	require.NotNil(t, exec)
	assert.Equal(t, tempApply.Name, exec.Args[0].Name)
}

func TestLowerIdentDefUndefinedAliasIsResolveError(t *testing.T) {
	block, err := NewParser([]byte(`y: nowhere`)).ParseProgram()
	require.NoError(t, err)
	l := NewLowerer(NewSymbolRegistry())
	err = l.Consume(block.Items[0])
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Resolve, ce.Code)
}

func TestLowerLitDefDuplicateNameIsResolveError(t *testing.T) {
	block, err := NewParser([]byte(`x: 1
x: 2`)).ParseProgram()
	require.NoError(t, err)
	l := NewLowerer(NewSymbolRegistry())
	require.NoError(t, l.Consume(block.Items[0]))
	err = l.Consume(block.Items[1])
	require.Error(t, err)
}
