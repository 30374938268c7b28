package blueprint

import (
	"fmt"

	"github.com/yukikurage/signiq/internal/errwrap"
)

// ErrMisuse is the sentinel every Blueprint-scope-violation panic wraps.
// Callers that want to tell a misuse panic apart from a genuine Realm or
// user-body panic can match on this with errors.Is after recovering.
var ErrMisuse = fmt.Errorf("blueprint: operation used outside a running Blueprint body")

// ErrMissingContext is the sentinel a Consume panic wraps when no
// Provide call ever bound the requested key in the current replay.
var ErrMissingContext = fmt.Errorf("blueprint: context key has no bound value in scope")

func errNotInBlueprint(op string) error {
	return errwrap.Wrapf(ErrMisuse, "%s called outside a running Blueprint body", op)
}

func errMissingContextValue(name string) error {
	return errwrap.Wrapf(ErrMissingContext, "context key %q has no provider in scope", name)
}
