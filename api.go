package rgoc

import (
	"io"

	"github.com/rgo-lang/rgoc/internal/rlog"
)

// Compile drives the full pipeline — lex, parse, lower to HIR, lower to
// AIR, emit NASM — reading source from r and writing the resulting
// assembly text to w.
func Compile(r io.Reader, w io.Writer, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}
	rlog.SetLevel(cfg.GetString("log.level"))

	src, err := io.ReadAll(r)
	if err != nil {
		return NewError(Io, err.Error(), Span{})
	}

	program, err := ParseProgram(src)
	if err != nil {
		return err
	}

	funcs, err := LowerToAir(program, cfg)
	if err != nil {
		return err
	}

	cg := NewCodegen(cfg)
	out, err := cg.Emit(funcs)
	if err != nil {
		return NewError(Codegen, err.Error(), Span{})
	}
	if _, err := io.WriteString(w, out); err != nil {
		return NewError(Io, err.Error(), Span{})
	}
	return nil
}

// ParseProgram lexes and parses src into a surface AST Block.
func ParseProgram(src []byte) (*Block, error) {
	rlog.PassBoundary("parse", "program")
	return NewParser(src).ParseProgram()
}

// LowerToAir runs the HIR and AIR lowering passes over a parsed program,
// returning every generated AirFunction (user functions, their closure
// helper triads, and the synthesized _start entry point).
func LowerToAir(program *Block, cfg *Config) ([]*AirFunction, error) {
	registry := NewSymbolRegistry()
	lowerer := NewLowerer(registry)

	for _, item := range program.Items {
		if err := lowerer.Consume(item); err != nil {
			return nil, err
		}
	}
	topLevel := lowerer.Finish()

	air := NewAirLowerer(registry)
	var funcs []*AirFunction
	var entryItems []HBlockItem
	for _, item := range topLevel {
		if item.FunctionDef != nil {
			rlog.PassBoundary("air", item.FunctionDef.Fn.Name)
			lowered, err := air.LowerFunction(item.FunctionDef.Fn)
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, lowered...)
			continue
		}
		entryItems = append(entryItems, item)
	}

	rlog.PassBoundary("air", "_start")
	entry, err := air.EntryFunction(entryItems)
	if err != nil {
		return nil, err
	}
	funcs = append(funcs, entry)
	return funcs, nil
}
