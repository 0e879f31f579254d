package rgoc

import (
	"fmt"
	"strconv"
)

// Parser is a recursive-descent parser over a Lexer's token stream. It
// buffers a small amount of lookahead and silently drops newline tokens,
// which this grammar treats only as separators between block items, not
// as statement terminators.
type Parser struct {
	lexer             *Lexer
	buf               []Token
	allowTopImports   bool
	genericParamStack [][]string
}

func NewParser(src []byte) *Parser {
	return &Parser{lexer: NewLexer(src), allowTopImports: true}
}

func (p *Parser) fill(n int) error {
	for len(p.buf) <= n {
		tok, err := p.lexer.Next()
		if err != nil {
			return err
		}
		// Newlines and semicolons are both pure block-item separators with
		// no syntactic meaning elsewhere in the grammar; drop both here so
		// every other parsing rule can ignore them entirely.
		if tok.Kind == TkNewline || tok.Kind == TkSemicolon {
			continue
		}
		p.buf = append(p.buf, tok)
		if tok.Kind == TkEof {
			break
		}
	}
	return nil
}

func (p *Parser) peekN(n int) (Token, error) {
	if err := p.fill(n); err != nil {
		return Token{}, err
	}
	if n >= len(p.buf) {
		return p.buf[len(p.buf)-1], nil
	}
	return p.buf[n], nil
}

func (p *Parser) peek() (Token, error) { return p.peekN(0) }

func (p *Parser) next() (Token, error) {
	tok, err := p.peekN(0)
	if err != nil {
		return Token{}, err
	}
	if len(p.buf) > 0 {
		p.buf = p.buf[1:]
	}
	return tok, nil
}

// pushBack restores a token to the front of the stream, for the one-token
// lookahead `parse_block_item` needs to tell an exec apart from a `name:`
// declaration.
func (p *Parser) pushBack(tok Token) {
	p.buf = append([]Token{tok}, p.buf...)
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	tok, err := p.next()
	if err != nil {
		return Token{}, err
	}
	if tok.Kind != kind {
		return Token{}, NewError(Parse, fmt.Sprintf("expected %s, found %s", kind, tok.Kind), tok.Span)
	}
	return tok, nil
}

// accept consumes and returns true if the next token has the given kind,
// otherwise leaves the stream untouched and returns false.
func (p *Parser) accept(kind TokenKind) (bool, error) {
	tok, err := p.peek()
	if err != nil {
		return false, err
	}
	if tok.Kind != kind {
		return false, nil
	}
	_, err = p.next()
	return true, err
}

// ParseProgram parses a whole source file: a sequence of BlockItems
// terminated by end of input. Imports are only legal before the first
// non-import item.
func (p *Parser) ParseProgram() (*Block, error) {
	start, err := p.peek()
	if err != nil {
		return nil, err
	}
	p.allowTopImports = true

	items := []BlockItem{}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkEof {
			break
		}
		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}
		item_span := item.Span
		isImport := item.Import != nil
		if isImport {
			if !p.allowTopImports {
				return nil, NewError(Parse, "@ imports must appear before any other items", item_span)
			}
		} else {
			p.allowTopImports = false
		}
		items = append(items, item)
	}
	return &Block{Items: items, Span: start.Span}, nil
}

// parseBody parses the BlockItems inside a `{ ... }` body, stopping at the
// closing brace instead of end of input. The opening brace must already
// have been consumed by the caller. A block must contain at least one item.
func (p *Parser) parseBody(startSpan Span) (*Block, error) {
	items := []BlockItem{}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkRBrace || tok.Kind == TkEof {
			break
		}
		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		return nil, NewError(Parse, "block must contain at least one item", tok.Span)
	}
	return &Block{Items: items, Span: startSpan}, nil
}

// parseBlockItem parses one top-level-or-nested item: `name: ...` (import,
// type/signature/literal/alias declaration, or function definition), a bare
// `(params) ...` (lambda or scope-capture), or a bare term exec.
func (p *Parser) parseBlockItem() (BlockItem, error) {
	tok, err := p.peek()
	if err != nil {
		return BlockItem{}, err
	}

	switch tok.Kind {
	case TkIdent:
		ident, err := p.next() // might be the name of a `name: ...` declaration
		if err != nil {
			return BlockItem{}, err
		}
		if next, err := p.peek(); err != nil {
			return BlockItem{}, err
		} else if next.Kind == TkColon {
			p.next() // consume ':'
			afterColon, err := p.peek()
			if err != nil {
				return BlockItem{}, err
			}
			if afterColon.Kind == TkImport {
				p.next() // consume the import token
				return BlockItem{
					Import: &Import{Label: ident.Text, Path: afterColon.Text, Span: ident.Span},
					Span:   ident.Span,
				}, nil
			}
			return p.parseBind(ident.Text, ident.Span)
		}
		// Not a declaration: restore the identifier and fall through to an exec.
		p.pushBack(ident)
	case TkLParen:
		return p.parseLambdaOrScopeCapture()
	case TkImport:
		return BlockItem{}, NewError(Parse, "imports must have a label (e.g. `int: @/int`)", tok.Span)
	case TkLBrace:
		// fall through: a bare `{...}` exec (lambda call with no args)
	default:
		return BlockItem{}, NewError(Parse, "expected a top-level item", tok.Span)
	}

	term, err := p.parseTerm()
	if err != nil {
		return BlockItem{}, err
	}
	switch {
	case term.IsLiteral():
		return BlockItem{}, NewError(Parse, "literals cannot be called yet", term.Span)
	case term.IsIdent():
		return BlockItem{Ident: term.Ident, Span: term.Span}, nil
	case term.IsLambda():
		return BlockItem{Lambda: term.Lambda, Span: term.Span}, nil
	default:
		return BlockItem{}, NewError(Parse, "expected a top-level item", term.Span)
	}
}

// parseBind parses everything that can follow `name:` once the colon and
// any `@import` case have already been ruled out: a type/value alias
// (`name: literal`, `name: ident`), a signature-only declaration
// (`name: (params)`), or a full function definition (`name: (params){body}`
// or `name: {body}`).
func (p *Parser) parseBind(name string, nameSpan Span) (BlockItem, error) {
	generics, err := p.parseGenericParams()
	if err != nil {
		return BlockItem{}, err
	}

	next, err := p.peek()
	if err != nil {
		return BlockItem{}, err
	}
	hasHead := next.Kind == TkLParen
	hasBrace := next.Kind == TkLBrace

	if hasBrace && len(generics) > 0 {
		return BlockItem{}, NewError(Parse, "generics are only supported on type aliases", next.Span)
	}

	if hasHead || hasBrace {
		var params []*Param
		if hasHead {
			p.genericParamStack = append(p.genericParamStack, generics)
			params, err = p.parseParams(true)
			p.genericParamStack = p.genericParamStack[:len(p.genericParamStack)-1]
			if err != nil {
				return BlockItem{}, err
			}
		}

		if ok, err := p.accept(TkLBrace); err != nil {
			return BlockItem{}, err
		} else if ok {
			body, err := p.parseBody(next.Span)
			if err != nil {
				return BlockItem{}, err
			}
			if _, err := p.expect(TkRBrace); err != nil {
				return BlockItem{}, err
			}
			lambda := &Lambda{Params: params, Body: body, Span: nameSpan}
			return BlockItem{FunctionDef: &FunctionDef{Name: name, Lambda: lambda, Span: nameSpan}, Span: nameSpan}, nil
		}

		if hasHead {
			sig := &Signature{GenericParams: generics, Params: params, Span: next.Span}
			return BlockItem{SigDef: &SigDef{Name: name, Sig: sig, Span: nameSpan}, Span: nameSpan}, nil
		}
	}

	term, err := p.parseTerm()
	if err != nil {
		return BlockItem{}, err
	}
	switch {
	case term.IsLiteral():
		return BlockItem{LitDef: &LitDef{Name: name, Literal: term.Literal, Span: nameSpan}, Span: nameSpan}, nil
	case term.IsIdent():
		return BlockItem{IdentDef: &IdentDef{Name: name, Ident: term.Ident, Span: nameSpan}, Span: nameSpan}, nil
	default:
		return BlockItem{}, NewError(Parse, "expected a literal or identifier alias on the right-hand side", term.Span)
	}
}

// parseLambdaOrScopeCapture disambiguates bare `(params){body}` (a lambda
// term) from `(params) = term {continuation}` (a scope-capture) by parsing
// the shared parameter-list prefix and branching on whichever token follows.
func (p *Parser) parseLambdaOrScopeCapture() (BlockItem, error) {
	start, err := p.peek()
	if err != nil {
		return BlockItem{}, err
	}
	params, err := p.parseParams(false)
	if err != nil {
		return BlockItem{}, err
	}

	tok, err := p.peek()
	if err != nil {
		return BlockItem{}, err
	}
	switch tok.Kind {
	case TkEquals:
		p.next()
		term, err := p.parseTerm()
		if err != nil {
			return BlockItem{}, err
		}
		brace, err := p.expect(TkLBrace)
		if err != nil {
			return BlockItem{}, err
		}
		continuation, err := p.parseBody(brace.Span)
		if err != nil {
			return BlockItem{}, err
		}
		if _, err := p.expect(TkRBrace); err != nil {
			return BlockItem{}, err
		}
		return BlockItem{
			ScopeCapture: &ScopeCapture{Params: params, Of: term, Continuation: continuation, Span: start.Span},
			Span:         start.Span,
		}, nil
	case TkLBrace:
		term, err := p.parseTerm()
		if err != nil {
			return BlockItem{}, err
		}
		if term.Lambda == nil {
			return BlockItem{}, NewError(Parse, "expected lambda body after parameter list", start.Span)
		}
		term.Lambda.Params = params
		return BlockItem{Lambda: term.Lambda, Span: start.Span}, nil
	default:
		return BlockItem{}, NewError(Parse, fmt.Sprintf("expected '=' or '{' after parameter list, found %s", tok.Kind), tok.Span)
	}
}

func (p *Parser) parseTerm() (Term, error) {
	term, err := p.parseHead()
	if err != nil {
		return Term{}, err
	}

	for {
		tok, err := p.peek()
		if err != nil {
			return Term{}, err
		}
		if tok.Kind != TkLParen {
			break
		}
		p.next() // consume '('
		args, err := p.parseArgumentListTail()
		if err != nil {
			return Term{}, err
		}
		switch {
		case term.IsIdent():
			term.Ident.Args = append(term.Ident.Args, args...)
		default:
			return Term{}, NewError(Parse, "expected identifier before argument list", tok.Span)
		}
	}

	return term, nil
}

// parseHead parses primary terms: literals, variables, and lambdas before
// any curried argument lists.
func (p *Parser) parseHead() (Term, error) {
	tok, err := p.next()
	if err != nil {
		return Term{}, err
	}
	switch tok.Kind {
	case TkIntLiteral:
		v, perr := strconv.ParseInt(tok.Text, 10, 64)
		if perr != nil {
			return Term{}, NewError(Parse, fmt.Sprintf("invalid integer literal `%s`", tok.Text), tok.Span)
		}
		return Term{Literal: &Literal{IntVal: v, Span: tok.Span}, Span: tok.Span}, nil
	case TkStringLiteral:
		return Term{Literal: &Literal{IsString: true, StrVal: tok.Text, Span: tok.Span}, Span: tok.Span}, nil
	case TkIdent:
		return Term{Ident: &Ident{Name: tok.Text, Span: tok.Span}, Span: tok.Span}, nil
	case TkLParen:
		p.pushBack(tok)
		params, err := p.parseParams(false)
		if err != nil {
			return Term{}, err
		}
		brace, err := p.expect(TkLBrace)
		if err != nil {
			return Term{}, err
		}
		body, err := p.parseBody(brace.Span)
		if err != nil {
			return Term{}, err
		}
		if _, err := p.expect(TkRBrace); err != nil {
			return Term{}, err
		}
		return Term{Lambda: &Lambda{Params: params, Body: body, Span: tok.Span}, Span: tok.Span}, nil
	case TkLBrace:
		body, err := p.parseBody(tok.Span)
		if err != nil {
			return Term{}, err
		}
		if _, err := p.expect(TkRBrace); err != nil {
			return Term{}, err
		}
		return Term{Lambda: &Lambda{Params: nil, Body: body, Span: tok.Span}, Span: tok.Span}, nil
	default:
		return Term{}, NewError(Parse, fmt.Sprintf("unexpected token %s", tok.Kind), tok.Span)
	}
}

// parseArgumentListTail parses a comma-separated argument list; the opening
// '(' has already been consumed by the caller.
func (p *Parser) parseArgumentListTail() ([]Term, error) {
	args := []Term{}
	if tok, err := p.peek(); err != nil {
		return nil, err
	} else if tok.Kind == TkRParen {
		p.next()
		return args, nil
	}
	for {
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, term)

		if ok, err := p.accept(TkComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(TkRParen); err != nil {
		return nil, err
	}
	return args, nil
}

// parseParams parses a parenthesized parameter list. allowTypeOnly governs
// whether a bare type (no parameter name) is accepted, matching the
// original grammar's ParamContext::Params vs ParamContext::Lambda split.
func (p *Parser) parseParams(allowTypeOnly bool) ([]*Param, error) {
	if _, err := p.expect(TkLParen); err != nil {
		return nil, err
	}
	params := []*Param{}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkRParen {
			break
		}
		param, err := p.parseParam(allowTypeOnly)
		if err != nil {
			return nil, err
		}
		params = append(params, param)

		if ok, err := p.accept(TkComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(TkRParen); err != nil {
		return nil, err
	}
	return params, nil
}

// parseParam parses one `name: type` or `type` (positional, allowTypeOnly
// only) entry, plus its trailing `!` (compile-time marker) and leading
// `...` (variadic marker). A bare name with no type is a parse error when
// allowTypeOnly is unset.
func (p *Parser) parseParam(allowTypeOnly bool) (*Param, error) {
	start, err := p.peek()
	if err != nil {
		return nil, err
	}
	variadic, err := p.accept(TkEllipsis)
	if err != nil {
		return nil, err
	}

	tok, err := p.peek()
	if err != nil {
		return nil, err
	}

	var name string
	var typ *TypeRef
	if tok.Kind == TkIdent {
		identTok, err := p.next()
		if err != nil {
			return nil, err
		}
		if ok, err := p.accept(TkColon); err != nil {
			return nil, err
		} else if ok {
			name = identTok.Text
			typ, err = p.parseTypeKind()
			if err != nil {
				return nil, err
			}
		} else if allowTypeOnly {
			p.pushBack(identTok)
			typ, err = p.parseTypeKind()
			if err != nil {
				return nil, err
			}
		} else {
			return nil, NewError(Parse, "lambda parameters must have a type", identTok.Span)
		}
	} else {
		typ, err = p.parseTypeKind()
		if err != nil {
			return nil, err
		}
	}

	bang, err := p.accept(TkBang)
	if err != nil {
		return nil, err
	}
	if bang && typ != nil {
		typ.Bang = true
	}

	return &Param{Name: name, Type: typ, Variadic: variadic, Span: start.Span}, nil
}

// parseTypeKind parses a type expression: a named type (with optional
// `<...>` generic arguments) or a parenthesized signature `(items)`.
func (p *Parser) parseTypeKind() (*TypeRef, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	if tok.Kind == TkLParen {
		params := []*TypeRef{}
		for {
			t, err := p.peek()
			if err != nil {
				return nil, err
			}
			if t.Kind == TkRParen {
				break
			}
			pt, err := p.parseTypeKind()
			if err != nil {
				return nil, err
			}
			params = append(params, pt)
			if ok, err := p.accept(TkComma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := p.expect(TkRParen); err != nil {
			return nil, err
		}
		return &TypeRef{Kind: SigKindFunc, Params: params, Span: tok.Span}, nil
	}

	if tok.Kind != TkIdent {
		return nil, NewError(Parse, "expected a type", tok.Span)
	}
	ref := &TypeRef{Kind: SigKindNamed, Name: tok.Text, Span: tok.Span}
	if next, err := p.peek(); err != nil {
		return nil, err
	} else if next.Kind == TkAngleOpen {
		if p.isGenericParam(tok.Text) {
			return nil, NewError(Parse, fmt.Sprintf("generic parameter `%s` cannot itself take type arguments", tok.Text), tok.Span)
		}
		args, err := p.parseTypeArguments()
		if err != nil {
			return nil, err
		}
		ref.TypeArgs = args
	}
	return ref, nil
}

func (p *Parser) parseTypeArguments() ([]*TypeRef, error) {
	if _, err := p.expect(TkAngleOpen); err != nil {
		return nil, err
	}
	args := []*TypeRef{}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TkAngleClose {
			break
		}
		t, err := p.parseTypeKind()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		if ok, err := p.accept(TkComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(TkAngleClose); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseGenericParams() ([]string, error) {
	ok, err := p.accept(TkAngleOpen)
	if err != nil || !ok {
		return nil, err
	}
	names := []string{}
	seen := map[string]bool{}
	for {
		tok, err := p.expect(TkIdent)
		if err != nil {
			return nil, err
		}
		if seen[tok.Text] {
			return nil, NewError(Parse, fmt.Sprintf("generic parameter `%s` already declared", tok.Text), tok.Span)
		}
		seen[tok.Text] = true
		names = append(names, tok.Text)
		more, err := p.accept(TkComma)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}
	if _, err := p.expect(TkAngleClose); err != nil {
		return nil, err
	}
	return names, nil
}

func (p *Parser) isGenericParam(name string) bool {
	for i := len(p.genericParamStack) - 1; i >= 0; i-- {
		for _, n := range p.genericParamStack[i] {
			if n == name {
				return true
			}
		}
	}
	return false
}
