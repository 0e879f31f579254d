package rgoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedT(name string) *TypeRef { return &TypeRef{Kind: SigKindNamed, Name: name} }

func TestResolveSignatureSubstitutesGenerics(t *testing.T) {
	sig := &Signature{
		GenericParams: []string{"T"},
		Params:        []*Param{{Name: "x", Type: namedT("T")}, {Name: "y", Type: namedT("int")}},
		Result:        namedT("T"),
	}
	resolved := ResolveSignature(sig)
	require.Len(t, resolved.Params, 2)
	assert.Equal(t, genericErasureTypeName, resolved.Params[0].Name)
	assert.Equal(t, "int", resolved.Params[1].Name)
	assert.Equal(t, genericErasureTypeName, resolved.Result.Name)
}

func TestResolveSignatureLeavesNonGenericTypesAlone(t *testing.T) {
	sig := &Signature{Params: []*Param{{Name: "x", Type: namedT("str")}}}
	resolved := ResolveSignature(sig)
	assert.Equal(t, "str", resolved.Params[0].Name)
	assert.Nil(t, resolved.Result)
}

func TestResolveSignatureSubstitutesInsideTypeArgsAndFuncTypes(t *testing.T) {
	listOfT := &TypeRef{Kind: SigKindNamed, Name: "list", TypeArgs: []*TypeRef{namedT("T")}}
	funcType := &TypeRef{Kind: SigKindFunc, Params: []*TypeRef{namedT("T")}, Result: namedT("U")}
	sig := &Signature{
		GenericParams: []string{"T", "U"},
		Params:        []*Param{{Name: "xs", Type: listOfT}, {Name: "f", Type: funcType}},
	}
	resolved := ResolveSignature(sig)
	assert.Equal(t, genericErasureTypeName, resolved.Params[0].TypeArgs[0].Name)
	assert.Equal(t, SigKindFunc, resolved.Params[1].Kind)
	assert.Equal(t, genericErasureTypeName, resolved.Params[1].Params[0].Name)
	assert.Equal(t, genericErasureTypeName, resolved.Params[1].Result.Name)
}

func TestFunctionDefSignatureTreatsUntypedParamsAsErased(t *testing.T) {
	fn := &FunctionDef{Lambda: &Lambda{Params: []*Param{{Name: "x"}, {Name: "y", Type: namedT("int")}}}}
	sig := FunctionDefSignature(fn)
	require.Len(t, sig.Params, 2)
	assert.Equal(t, genericErasureTypeName, sig.Params[0].Name)
	assert.Equal(t, "int", sig.Params[1].Name)
	assert.Nil(t, sig.Result)
}

func TestExpectedParamCount(t *testing.T) {
	sig := &FunctionSig{Params: []*TypeRef{namedT("int"), namedT("str")}}
	assert.Equal(t, 2, ExpectedParamCount(sig))
}

func TestResolveIdentTargetFindsDirectFunction(t *testing.T) {
	r := NewSymbolRegistry()
	sig := &FunctionSig{Params: []*TypeRef{namedT("int")}}
	r.DeclareFunction("add", sig)

	got, err := ResolveIdentTarget(r, "add", Span{})
	require.NoError(t, err)
	assert.Same(t, sig, got)
}

func TestResolveIdentTargetFollowsAliasChain(t *testing.T) {
	r := NewSymbolRegistry()
	sig := &FunctionSig{Params: []*TypeRef{namedT("int")}}
	r.DeclareFunction("add", sig)
	require.NoError(t, r.DeclareValue("plus", &ValueEntry{Kind: ValueKindAlias, Alias: "add"}, Span{}))

	got, err := ResolveIdentTarget(r, "plus", Span{})
	require.NoError(t, err)
	assert.Same(t, sig, got)
}

func TestResolveIdentTargetDetectsAliasCycle(t *testing.T) {
	r := NewSymbolRegistry()
	require.NoError(t, r.DeclareValue("a", &ValueEntry{Kind: ValueKindAlias, Alias: "b"}, Span{}))
	require.NoError(t, r.DeclareValue("b", &ValueEntry{Kind: ValueKindAlias, Alias: "a"}, Span{}))

	_, err := ResolveIdentTarget(r, "a", Span{})
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Resolve, ce.Code)
}

func TestResolveIdentTargetRejectsNonAliasValue(t *testing.T) {
	r := NewSymbolRegistry()
	require.NoError(t, r.DeclareValue("answer", &ValueEntry{Kind: ValueKindLiteral, Literal: &Literal{IntVal: 42}}, Span{}))

	_, err := ResolveIdentTarget(r, "answer", Span{})
	require.Error(t, err)
}

func TestResolveIdentTargetUndefinedName(t *testing.T) {
	r := NewSymbolRegistry()
	_, err := ResolveIdentTarget(r, "ghost", Span{})
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Resolve, ce.Code)
}

func TestIsEffectful(t *testing.T) {
	assert.False(t, IsEffectful(&Signature{}))
	assert.False(t, IsEffectful(&Signature{Result: namedT("int")}))
	assert.True(t, IsEffectful(&Signature{Result: &TypeRef{Kind: SigKindNamed, Name: "int", Bang: true}}))
}
