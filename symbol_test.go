package rgoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolRegistryDeclareAndGetFunction(t *testing.T) {
	r := NewSymbolRegistry()
	sig := &FunctionSig{Params: []*TypeRef{{Kind: SigKindNamed, Name: "int"}}, Result: &TypeRef{Kind: SigKindNamed, Name: "int"}}
	r.DeclareFunction("double", sig)

	got, ok := r.GetFunction("double")
	require.True(t, ok)
	assert.Same(t, sig, got)

	_, ok = r.GetFunction("missing")
	assert.False(t, ok)
}

func TestSymbolRegistryFunctionDeclarationIsLastWriteWins(t *testing.T) {
	r := NewSymbolRegistry()
	r.DeclareFunction("f", &FunctionSig{Params: []*TypeRef{{Kind: SigKindNamed, Name: "int"}}})
	r.DeclareFunction("f", &FunctionSig{Params: []*TypeRef{{Kind: SigKindNamed, Name: "str"}}})

	got, ok := r.GetFunction("f")
	require.True(t, ok)
	require.Len(t, got.Params, 1)
	assert.Equal(t, "str", got.Params[0].Name)
}

func TestSymbolRegistryDeclareValueRejectsDuplicate(t *testing.T) {
	r := NewSymbolRegistry()
	err := r.DeclareValue("x", &ValueEntry{Kind: ValueKindLiteral, Literal: &Literal{IntVal: 1}}, Span{})
	require.NoError(t, err)

	err = r.DeclareValue("x", &ValueEntry{Kind: ValueKindLiteral, Literal: &Literal{IntVal: 2}}, Span{})
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Resolve, ce.Code)
}

func TestSymbolRegistryBuiltinImportTracking(t *testing.T) {
	r := NewSymbolRegistry()
	assert.False(t, r.IsBuiltinImport("add"))
	r.RecordBuiltinImport("add", "int")
	assert.True(t, r.IsBuiltinImport("add"))
}

func TestSymbolRegistryInstallAndGetTypeInfo(t *testing.T) {
	r := NewSymbolRegistry()
	r.InstallType("list", &TypeInfo{GenericArity: 1, ImportLabel: "collections"})
	info, ok := r.GetTypeInfo("list")
	require.True(t, ok)
	assert.Equal(t, 1, info.GenericArity)
	assert.Equal(t, "collections", info.ImportLabel)
}
