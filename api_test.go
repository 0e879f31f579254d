package rgoc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compileTest struct {
	Name   string
	Source string
}

var endToEndScenarios = []compileTest{
	{
		Name: "add_five",
		Source: `int: @/int
str: @/str
add: @/add
sprintf: @/sprintf
write: @/write
exit: @/exit

print_int: (value:int) { sprintf("%d\n", value, (res:str) { write(res, (){ exit(0) }) }) }

add_five: (ok:(int)) { add(5, 0, ok) }

add_five((res:int) { print_int(res) })
`,
	},
	{
		Name: "hello",
		Source: `str: @/str
write: @/write
exit: @/exit

write("hello\n", (){ exit(0) })
`,
	},
	{
		Name: "partial_application_of_3arg_printf",
		Source: `str: @/str
printf: @/printf
exit: @/exit

greet: (n0:str, n1:str, n2:str) { printf("%s,%s,%s\n", n0, n1, n2, (){ exit(0) }) }

greet_ab: greet("a", "b")
greet_ab("c")
`,
	},
	{
		Name: "curried_integer_comparison",
		Source: `int: @/int
str: @/str
eq: @/eq
write: @/write
exit: @/exit

check: (x:int, t:(), f:()) { eq(x, 3, t, f) }

check(3, (){ write("yes\n", (){ exit(0) }) }, (){ write("no\n", (){ exit(0) }) })
`,
	},
	{
		Name: "itoa_plus_write",
		Source: `int: @/int
str: @/str
itoa: @/itoa
write: @/write
exit: @/exit

itoa(42, (s:str) { write(s, (){ exit(0) }) })
`,
	},
	{
		Name: "nested_closures_with_captures",
		Source: `int: @/int
str: @/str
add: @/add
sprintf: @/sprintf
write: @/write
exit: @/exit

adder: (x:int, k:(int)) { add(x, 10, k) }

adder(7, (r:int) { sprintf("%d\n", r, (s:str) { write(s, (){ exit(0) }) }) })
`,
	},
}

func TestCompileEndToEndScenarios(t *testing.T) {
	for _, scenario := range endToEndScenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			var out bytes.Buffer
			err := Compile(strings.NewReader(scenario.Source), &out, NewConfig())
			require.NoError(t, err)

			asm := out.String()
			assert.Contains(t, asm, "global _start")
			assert.Equal(t, 1, strings.Count(asm, "global _start\n"), "exactly one _start directive")
			assert.Contains(t, asm, "section .text")
			assert.Contains(t, asm, "section .rodata")
		})
	}
}

func TestCompileNilConfigDefaultsToNewConfig(t *testing.T) {
	var out bytes.Buffer
	err := Compile(strings.NewReader(endToEndScenarios[1].Source), &out, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "global _start")
}

func TestCompileRejectsUnparseableSource(t *testing.T) {
	var out bytes.Buffer
	err := Compile(strings.NewReader("(((("), &out, NewConfig())
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Parse, ce.Code)
}

func TestParseProgramReturnsBlock(t *testing.T) {
	block, err := ParseProgram([]byte(endToEndScenarios[1].Source))
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.NotEmpty(t, block.Items)
}

func TestLowerToAirProducesEntryPoint(t *testing.T) {
	block, err := ParseProgram([]byte(endToEndScenarios[0].Source))
	require.NoError(t, err)

	funcs, err := LowerToAir(block, NewConfig())
	require.NoError(t, err)
	require.NotEmpty(t, funcs)

	var sawEntry bool
	for _, fn := range funcs {
		if fn.Sig.Name == "_start" {
			sawEntry = true
		}
	}
	assert.True(t, sawEntry, "LowerToAir must produce a _start function")
}

func TestLowerToAirEmitsHelperTripletForClosureParams(t *testing.T) {
	block, err := ParseProgram([]byte(endToEndScenarios[5].Source))
	require.NoError(t, err)

	funcs, err := LowerToAir(block, NewConfig())
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, fn := range funcs {
		names[fn.Sig.Name] = true
	}
	assert.True(t, names["adder_unwrapper"])
	assert.True(t, names["adder_deep_release"])
	assert.True(t, names["adder_deepcopy"])
}
