package iteration

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/relir/internal/value"
)

// Function is a scalar function over row values.
type Function func(args []value.Value) (value.Value, error)

// Builtins returns the functions every Engine starts with. Comparisons and
// arithmetic return NULL when any argument is NULL.
func Builtins() map[string]Function {
	return map[string]Function{
		"eq":     comparison(func(n int) bool { return n == 0 }),
		"ne":     comparison(func(n int) bool { return n != 0 }),
		"lt":     comparison(func(n int) bool { return n < 0 }),
		"le":     comparison(func(n int) bool { return n <= 0 }),
		"gt":     comparison(func(n int) bool { return n > 0 }),
		"ge":     comparison(func(n int) bool { return n >= 0 }),
		"add":    arithmetic("add", func(a, b int64) (int64, error) { return a + b, nil }, func(a, b float64) float64 { return a + b }),
		"sub":    arithmetic("sub", func(a, b int64) (int64, error) { return a - b, nil }, func(a, b float64) float64 { return a - b }),
		"mul":    arithmetic("mul", func(a, b int64) (int64, error) { return a * b, nil }, func(a, b float64) float64 { return a * b }),
		"div":    arithmetic("div", intDiv, func(a, b float64) float64 { return a / b }),
		"neg":    neg,
		"concat": concat,
		"lower":  caseMapper("lower", cases.Lower(language.Und)),
		"upper":  caseMapper("upper", cases.Upper(language.Und)),
	}
}

func arity(name string, args []value.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func anyNull(args []value.Value) bool {
	for _, a := range args {
		if value.IsNull(a) {
			return true
		}
	}
	return false
}

func comparison(holds func(int) bool) Function {
	return func(args []value.Value) (value.Value, error) {
		if err := arity("comparison", args, 2); err != nil {
			return nil, err
		}
		if anyNull(args) {
			return value.Null{}, nil
		}
		return value.Bool(holds(value.Compare(args[0], args[1]))), nil
	}
}

func arithmetic(name string, ints func(a, b int64) (int64, error), floats func(a, b float64) float64) Function {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(name, args, 2); err != nil {
			return nil, err
		}
		if anyNull(args) {
			return value.Null{}, nil
		}
		if a, ok := args[0].(value.Int); ok {
			if b, ok := args[1].(value.Int); ok {
				n, err := ints(int64(a), int64(b))
				return value.Int(n), err
			}
		}
		a, err := number(name, args[0])
		if err != nil {
			return nil, err
		}
		b, err := number(name, args[1])
		if err != nil {
			return nil, err
		}
		return value.Float(floats(a, b)), nil
	}
}

func intDiv(a, b int64) (int64, error) {
	if b == 0 {
		return 0, fmt.Errorf("div: division by zero")
	}
	return a / b, nil
}

func number(name string, v value.Value) (float64, error) {
	switch n := v.(type) {
	case value.Int:
		return float64(n), nil
	case value.Float:
		return float64(n), nil
	}
	return 0, fmt.Errorf("%s: %s is not a number", name, v)
}

func neg(args []value.Value) (value.Value, error) {
	if err := arity("neg", args, 1); err != nil {
		return nil, err
	}
	switch n := args[0].(type) {
	case value.Null:
		return n, nil
	case value.Int:
		return -n, nil
	case value.Float:
		return -n, nil
	}
	return nil, fmt.Errorf("neg: %s is not a number", args[0])
}

func concat(args []value.Value) (value.Value, error) {
	if anyNull(args) {
		return value.Null{}, nil
	}
	var out string
	for _, a := range args {
		s, ok := a.(value.String)
		if !ok {
			return nil, fmt.Errorf("concat: %s is not a string", a)
		}
		out += string(s)
	}
	return value.String(out), nil
}

func caseMapper(name string, c cases.Caser) Function {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		switch s := args[0].(type) {
		case value.Null:
			return s, nil
		case value.String:
			return value.String(c.String(string(s))), nil
		}
		return nil, fmt.Errorf("%s: %s is not a string", name, args[0])
	}
}
