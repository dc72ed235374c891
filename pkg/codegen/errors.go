package codegen

import (
	"errors"
	"fmt"

	"github.com/toslang/tosc/pkg/token"
	"github.com/toslang/tosc/pkg/util"
)

var (
	// ErrInternal marks a broken invariant of an earlier pass or of the
	// selector itself. It is never a user source error.
	ErrInternal = errors.New("internal error")
	// ErrUnsupported marks a construct that has no lowering yet.
	ErrUnsupported = errors.New("unsupported construct")
)

// Diagnostic is a positioned selector failure. Err wraps ErrInternal or
// ErrUnsupported.
type Diagnostic struct {
	Tok token.Token
	Err error
}

func (d *Diagnostic) Error() string { return util.FormatLocation(d.Tok) + ": " + d.Err.Error() }
func (d *Diagnostic) Unwrap() error { return d.Err }

// bailout carries a Diagnostic out of the recursive traversal to Run.
type bailout struct{ diag *Diagnostic }

func (ctx *Context) internal(tok token.Token, format string, args ...interface{}) {
	panic(bailout{&Diagnostic{Tok: tok, Err: fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))}})
}

// check aborts the run with err attached to tok. Errors that already carry
// ErrInternal or ErrUnsupported keep their tier; anything else is internal.
func (ctx *Context) check(tok token.Token, err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, ErrInternal) && !errors.Is(err, ErrUnsupported) {
		err = fmt.Errorf("%w: %w", ErrInternal, err)
	}
	panic(bailout{&Diagnostic{Tok: tok, Err: err}})
}

// Report prints err in the compiler's diagnostic format. Positioned errors
// get a source excerpt when the source is known to util.
func Report(err error) {
	var d *Diagnostic
	if errors.As(err, &d) {
		util.Report(d.Tok, "%v", d.Err)
		return
	}
	util.Report(token.Token{FileIndex: -1}, "%v", err)
}
