package rgoc

import "fmt"

// ErrorCode classifies a CompileError by the stage that raised it.
type ErrorCode int

const (
	Io ErrorCode = iota
	Lex
	Parse
	Resolve
	Codegen
	Internal
)

func (c ErrorCode) String() string {
	switch c {
	case Io:
		return "io"
	case Lex:
		return "lex"
	case Parse:
		return "parse"
	case Resolve:
		return "resolve"
	case Codegen:
		return "codegen"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// CompileError is the single error type surfaced by every stage of the
// compiler. There is no recovery: the first CompileError returned by any
// stage aborts the pipeline and discards any output produced so far.
type CompileError struct {
	Code    ErrorCode
	Message string
	Span    Span
}

func NewError(code ErrorCode, message string, span Span) *CompileError {
	return &CompileError{Code: code, Message: message, Span: span}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[%s] %s at %d:%d", e.Code, e.Message, e.Span.Line, e.Span.Column)
}

func isCompileError(err error) bool {
	_, ok := err.(*CompileError)
	return ok
}
