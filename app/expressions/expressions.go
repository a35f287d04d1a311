package expressions

import (
	"autoflow/app/expressions/golang"
	"autoflow/app/expressions/jinja"
)

type Expression interface {
	Match(expr string) bool
	Evaluate(expr string, data map[string]interface{}) (interface{}, error)
}

var (
	builtinExpressions = []Expression{
		golang.GolangExpression{},
		jinja.JinjaExpression{},
	}
)

// Evaluate renders a single string. Strings without an expression are
// returned unchanged.
func Evaluate(expr string, dataCtx map[string]interface{}) (interface{}, error) {
	for _, expression := range builtinExpressions {
		if expression.Match(expr) {
			return expression.Evaluate(expr, dataCtx)
		}
	}
	return expr, nil
}

// EvaluateRecursively renders every string nested in data. The first failing
// expression aborts the walk.
func EvaluateRecursively(data interface{}, dataCtx map[string]interface{}) (interface{}, error) {
	switch v := data.(type) {
	case string:
		return Evaluate(v, dataCtx)
	case []interface{}:
		result := make([]interface{}, 0, len(v))
		for _, one := range v {
			r, err := EvaluateRecursively(one, dataCtx)
			if err != nil {
				return nil, err
			}
			result = append(result, r)
		}
		return result, nil
	case []string:
		result := make([]interface{}, 0, len(v))
		for _, one := range v {
			r, err := Evaluate(one, dataCtx)
			if err != nil {
				return nil, err
			}
			result = append(result, r)
		}
		return result, nil
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, one := range v {
			r, err := EvaluateRecursively(one, dataCtx)
			if err != nil {
				return nil, err
			}
			result[k] = r
		}
		return result, nil
	default:
		return data, nil
	}
}

// HasExpression reports whether s contains a template block.
func HasExpression(s string) bool {
	for _, expression := range builtinExpressions {
		if expression.Match(s) {
			return true
		}
	}
	return false
}
