package jinja

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"autoflow/app/expressions/builtin"

	"github.com/flosch/pongo2/v4"
)

var (
	AnyRegexp   = `\{\%.*\%\}`
	JinjaRegexp = `\{\%(.*?)\%\}`

	reIdentifier = regexp.MustCompile(AnyRegexp)
	reExpression = regexp.MustCompile(JinjaRegexp)
)

type JinjaExpression struct {
}

func (e JinjaExpression) Match(expr string) bool {
	return Match(expr)
}

func (e JinjaExpression) Evaluate(expr string, data map[string]interface{}) (interface{}, error) {
	return Evaluate(expr, data)
}

func Match(expr string) bool {
	return reIdentifier.MatchString(expr)
}

// newContext exposes data under "_" next to the builtin functions.
func newContext(data map[string]interface{}) pongo2.Context {
	ctx := pongo2.Context{}
	ctx["_"] = data
	for k, v := range builtin.BuiltinFunc {
		ctx[k] = v
	}
	return ctx
}

// fromString compiles expr with html escaping off; results feed JSON and
// plain text, never markup.
func fromString(expr string) (*pongo2.Template, error) {
	return pongo2.FromString("{% autoescape off %}" + expr + "{% endautoescape %}")
}

func EvaluateReturnInterface(expr string, data map[string]interface{}) (interface{}, error) {
	tpl, err := fromString(expr)
	if err != nil {
		return nil, err
	}

	result, err := tpl.Execute(newContext(data))
	if err != nil {
		return nil, err
	}
	if result == "" {
		return nil, nil
	}

	var published interface{}
	if err := json.Unmarshal([]byte(result), &published); err != nil {
		return nil, fmt.Errorf("%s, output: '%s'", err.Error(), result)
	}
	return published, nil
}

func EvaluateReturnString(expr string, data map[string]interface{}) (interface{}, error) {
	tpl, err := fromString(expr)
	if err != nil {
		return nil, err
	}
	return tpl.Execute(newContext(data))
}

func Evaluate(expr string, data map[string]interface{}) (interface{}, error) {
	matched := reExpression.FindAllStringSubmatchIndex(expr, -1)

	if len(matched) == 1 && matched[0][0] == 0 && matched[0][1] == len(expr) {
		tplStr := fmt.Sprintf(`{{ json(%s) }}`, expr[matched[0][2]:matched[0][3]])
		return EvaluateReturnInterface(tplStr, data)
	}

	exprParts := []string{}
	lastPos := 0
	for i, values := range matched {
		exprParts = append(exprParts, expr[lastPos:values[0]])
		exprParts = append(exprParts, fmt.Sprintf(`{{ %s }}`, expr[values[2]:values[3]]))
		lastPos = values[1]
		if i == len(matched)-1 {
			exprParts = append(exprParts, expr[values[1]:])
		}
	}
	return EvaluateReturnString(strings.Join(exprParts, ""), data)
}
