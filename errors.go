package watc

import "fmt"

// ErrorKind categorizes why a Compile call failed, so an embedder can decide
// whether a failure is its own bug (InvalidInput), a module using a feature
// this compiler doesn't implement (Unsupported), a module that's
// technically valid but too large for this compiler's fixed internal limits
// (ImplLimitExceeded), a bug in the compiler itself surfacing as a broken
// invariant (Codegen), or a failure the embedder's own Environment
// implementation reported back (Environment).
type ErrorKind byte

const (
	ErrorKindUnsupported ErrorKind = iota
	ErrorKindImplLimitExceeded
	ErrorKindInvalidInput
	ErrorKindCodegen
	ErrorKindEnvironment
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindUnsupported:
		return "unsupported"
	case ErrorKindImplLimitExceeded:
		return "impl_limit_exceeded"
	case ErrorKindInvalidInput:
		return "invalid_input"
	case ErrorKindCodegen:
		return "codegen"
	case ErrorKindEnvironment:
		return "environment"
	default:
		panic("BUG")
	}
}

// CompileError is the single error type every exported entry point in this
// module returns; wrapping it in fmt.Errorf with %w preserves Kind so
// errors.As still recovers it after the embedder's own context is added.
type CompileError struct {
	Kind     ErrorKind
	Func     uint32
	Message  string
	Wrapped  error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("compile function %d: %s: %s: %v", e.Func, e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("compile function %d: %s: %s", e.Func, e.Kind, e.Message)
}

// Unwrap exposes the underlying error, if any, to errors.Is/As.
func (e *CompileError) Unwrap() error { return e.Wrapped }

func unsupported(funcIndex uint32, format string, args ...any) *CompileError {
	return &CompileError{Kind: ErrorKindUnsupported, Func: funcIndex, Message: fmt.Sprintf(format, args...)}
}

func implLimitExceeded(funcIndex uint32, format string, args ...any) *CompileError {
	return &CompileError{Kind: ErrorKindImplLimitExceeded, Func: funcIndex, Message: fmt.Sprintf(format, args...)}
}

func invalidInput(funcIndex uint32, format string, args ...any) *CompileError {
	return &CompileError{Kind: ErrorKindInvalidInput, Func: funcIndex, Message: fmt.Sprintf(format, args...)}
}

func codegenBug(funcIndex uint32, format string, args ...any) *CompileError {
	return &CompileError{Kind: ErrorKindCodegen, Func: funcIndex, Message: fmt.Sprintf(format, args...)}
}

func environmentError(funcIndex uint32, err error) *CompileError {
	return &CompileError{Kind: ErrorKindEnvironment, Func: funcIndex, Message: "environment callback failed", Wrapped: err}
}
