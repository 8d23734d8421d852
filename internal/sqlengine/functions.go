package sqlengine

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Function renders a scalar function call from its rendered arguments.
type Function func(args []sq.Sqlizer) (sq.Sqlizer, error)

// Builtins returns the functions every Engine starts with. They mirror the
// iteration engine's, with SQLite's semantics: division by zero yields NULL
// and lower/upper only fold ASCII.
func Builtins() map[string]Function {
	return map[string]Function{
		"eq":     infix("eq", "="),
		"ne":     infix("ne", "<>"),
		"lt":     infix("lt", "<"),
		"le":     infix("le", "<="),
		"gt":     infix("gt", ">"),
		"ge":     infix("ge", ">="),
		"add":    infix("add", "+"),
		"sub":    infix("sub", "-"),
		"mul":    infix("mul", "*"),
		"div":    infix("div", "/"),
		"neg":    prefix("neg", "-"),
		"concat": concat,
		"lower":  call("lower"),
		"upper":  call("upper"),
	}
}

func arity(name string, args []sq.Sqlizer, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func infix(name, op string) Function {
	return func(args []sq.Sqlizer) (sq.Sqlizer, error) {
		if err := arity(name, args, 2); err != nil {
			return nil, err
		}
		return sq.Expr("(? "+op+" ?)", args[0], args[1]), nil
	}
}

func prefix(name, op string) Function {
	return func(args []sq.Sqlizer) (sq.Sqlizer, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		return sq.Expr("("+op+" ?)", args[0]), nil
	}
}

func call(name string) Function {
	return func(args []sq.Sqlizer) (sq.Sqlizer, error) {
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		return sq.Expr(name+"(?)", args[0]), nil
	}
}

func concat(args []sq.Sqlizer) (sq.Sqlizer, error) {
	if len(args) == 0 {
		return sq.Expr("?", ""), nil
	}
	marks := strings.TrimSuffix(strings.Repeat("? || ", len(args)), " || ")
	items := make([]any, len(args))
	for i, a := range args {
		items[i] = a
	}
	return sq.Expr("("+marks+")", items...), nil
}
