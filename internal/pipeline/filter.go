package pipeline

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nao1215/digestfetch/internal/archive"
)

// filterEnv is the environment a filter expression is evaluated against.
type filterEnv struct {
	Year  int    `expr:"year"`
	Month int    `expr:"month"`
	Ref   string `expr:"ref"`
}

// Filter selects which references are downloaded.
// The expression sees year (int), month (int, 1-12) and ref ("YYYY-MM"),
// for example `year >= 2020 && month in [1, 7]`.
type Filter struct {
	source  string
	program *vm.Program
}

// NewFilter compiles expression. An empty expression yields a nil filter,
// which matches everything.
func NewFilter(expression string) (*Filter, error) {
	if expression == "" {
		return nil, nil //nolint:nilnil // nil filter matches everything
	}
	program, err := expr.Compile(expression, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return &Filter{source: expression, program: program}, nil
}

// Match reports whether ref passes the filter.
func (f *Filter) Match(ref archive.Reference) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := vm.Run(f.program, filterEnv{
		Year:  ref.Year,
		Month: int(ref.Month),
		Ref:   ref.String(),
	})
	if err != nil {
		return false, fmt.Errorf("filter %q on %s: %w", f.source, ref, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("filter %q on %s returned %T, want bool", f.source, ref, out)
	}
	return ok, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}
