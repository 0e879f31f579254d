package rgoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseBlock(t *testing.T, src string) *Block {
	t.Helper()
	block, err := NewParser([]byte(src)).ParseProgram()
	require.NoError(t, err)
	return block
}

func TestParserImportItem(t *testing.T) {
	block := parseBlock(t, `int: @/int`)
	require.Len(t, block.Items, 1)
	imp := block.Items[0].Import
	require.NotNil(t, imp)
	assert.Equal(t, "int", imp.Label)
	assert.Equal(t, "/int", imp.Path)
}

func TestParserImportWithOwner(t *testing.T) {
	block := parseBlock(t, `widgets: @acme/widgets`)
	imp := block.Items[0].Import
	require.NotNil(t, imp)
	assert.Equal(t, "widgets", imp.Label)
	assert.Equal(t, "acme/widgets", imp.Path)
}

func TestParserImportMustPrecedeOtherItems(t *testing.T) {
	_, err := NewParser([]byte("x: 1\nint: @/int")).ParseProgram()
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Parse, ce.Code)
}

func TestParserFunctionDef(t *testing.T) {
	block := parseBlock(t, `add_one: (x:int) { x }`)
	require.Len(t, block.Items, 1)
	def := block.Items[0].FunctionDef
	require.NotNil(t, def)
	assert.Equal(t, "add_one", def.Name)
	require.Len(t, def.Lambda.Params, 1)
	assert.Equal(t, "x", def.Lambda.Params[0].Name)
	assert.Equal(t, "int", def.Lambda.Params[0].Type.Name)
}

func TestParserSigDef(t *testing.T) {
	block := parseBlock(t, `greet: (n0:str, n1:str, n2:str)`)
	require.Len(t, block.Items, 1)
	sig := block.Items[0].SigDef
	require.NotNil(t, sig)
	assert.Equal(t, "greet", sig.Name)
	require.Len(t, sig.Sig.Params, 3)
	assert.Equal(t, "str", sig.Sig.Params[0].Type.Name)
}

func TestParserSigDefWithFunctionTypeAndBang(t *testing.T) {
	block := parseBlock(t, `run: (n:int, k:(int)!)`)
	sig := block.Items[0].SigDef.Sig
	require.Len(t, sig.Params, 2)
	k := sig.Params[1].Type
	require.NotNil(t, k)
	assert.Equal(t, SigKindFunc, k.Kind)
	assert.True(t, k.Bang)
}

func TestParserLetLiteral(t *testing.T) {
	block := parseBlock(t, `answer: 42`)
	lit := block.Items[0].LitDef
	require.NotNil(t, lit)
	assert.Equal(t, "answer", lit.Name)
	assert.Equal(t, int64(42), lit.Literal.IntVal)
}

func TestParserLetIdentAlias(t *testing.T) {
	block := parseBlock(t, `other: original`)
	identDef := block.Items[0].IdentDef
	require.NotNil(t, identDef)
	assert.Equal(t, "other", identDef.Name)
	assert.Equal(t, "original", identDef.Ident.Name)
	assert.Empty(t, identDef.Ident.Args)
}

func TestParserLetPartialApplication(t *testing.T) {
	block := parseBlock(t, `greet_ab: greet("a", "b")`)
	identDef := block.Items[0].IdentDef
	require.NotNil(t, identDef)
	assert.Equal(t, "greet", identDef.Ident.Name)
	require.Len(t, identDef.Ident.Args, 2)
}

func TestParserLetRejectsNonAliasableRHS(t *testing.T) {
	_, err := NewParser([]byte(`bad: +`)).ParseProgram()
	require.Error(t, err)
}

func TestParserBareExecCall(t *testing.T) {
	block := parseBlock(t, `write("hi", cont)`)
	ident := block.Items[0].Ident
	require.NotNil(t, ident)
	assert.Equal(t, "write", ident.Name)
	require.Len(t, ident.Args, 2)
}

func TestParserBareLiteralIsRejected(t *testing.T) {
	_, err := NewParser([]byte(`42`)).ParseProgram()
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Parse, ce.Code)
}

func TestParserLambdaExpression(t *testing.T) {
	block := parseBlock(t, `(x:int, y:int){ add(x, y, done) }`)
	lambda := block.Items[0].Lambda
	require.NotNil(t, lambda)
	require.Len(t, lambda.Params, 2)
	require.Len(t, lambda.Body.Items, 1)
}

func TestParserLambdaWithBareTermBody(t *testing.T) {
	block := parseBlock(t, `(x:int){ done(x) }`)
	lambda := block.Items[0].Lambda
	require.NotNil(t, lambda)
	require.Len(t, lambda.Body.Items, 1)
	assert.Equal(t, "done", lambda.Body.Items[0].Ident.Name)
}

func TestParserScopeCaptureDesugarsToHApplyLater(t *testing.T) {
	block := parseBlock(t, `(res:int) = add(1, 2) { write(res, exit) }`)
	sc := block.Items[0].ScopeCapture
	require.NotNil(t, sc)
	require.Len(t, sc.Params, 1)
	assert.Equal(t, "add", sc.Of.Ident.Name)
	require.Len(t, sc.Continuation.Items, 1)
}

func TestParserScopeCaptureRejectedInExpressionPosition(t *testing.T) {
	_, err := NewParser([]byte(`bad: (y:int) = f { y }`)).ParseProgram()
	require.Error(t, err)
}

func TestParserGenericFunctionType(t *testing.T) {
	block := parseBlock(t, `map: <T,U>(xs:list<T>, f:(T))`)
	sig := block.Items[0].SigDef.Sig
	assert.Equal(t, []string{"T", "U"}, sig.GenericParams)
	require.Len(t, sig.Params, 2)
	assert.Equal(t, "list", sig.Params[0].Type.Name)
	require.Len(t, sig.Params[0].Type.TypeArgs, 1)
	assert.Equal(t, SigKindFunc, sig.Params[1].Type.Kind)
}

func TestParserGenericParamRejectsOwnTypeArguments(t *testing.T) {
	_, err := NewParser([]byte(`bad: <T>(x:T<int>)`)).ParseProgram()
	require.Error(t, err)
}

func TestParserVariadicParam(t *testing.T) {
	block := parseBlock(t, `sum: (...xs:int)`)
	params := block.Items[0].SigDef.Sig.Params
	require.Len(t, params, 1)
	assert.True(t, params[0].Variadic)
}

func TestParserUnexpectedTokenIsParseError(t *testing.T) {
	_, err := NewParser([]byte("((((")).ParseProgram()
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Parse, ce.Code)
}

func TestParserNewlinesAndSemicolonsAreInsignificant(t *testing.T) {
	block := parseBlock(t, "int: @/int\n\nwrite(\"hi\", cont);\n")
	require.Len(t, block.Items, 2)
}

func TestParserImportWithoutLabelIsRejected(t *testing.T) {
	_, err := NewParser([]byte(`@/int`)).ParseProgram()
	require.Error(t, err)
	ce, ok := err.(*CompileError)
	require.True(t, ok)
	assert.Equal(t, Parse, ce.Code)
}
