package golang

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"autoflow/app/expressions/builtin"
)

var (
	AnyRegexp    = `\{\{.*\}\}`
	GolangRegexp = `\{\{(.*?)\}\}`

	reIdentifier = regexp.MustCompile(AnyRegexp)
	reExpression = regexp.MustCompile(GolangRegexp)
)

type GolangExpression struct {
}

func (e GolangExpression) Match(expr string) bool {
	return Match(expr)
}

func (e GolangExpression) Evaluate(expr string, data map[string]interface{}) (interface{}, error) {
	return Evaluate(expr, data)
}

func Match(expr string) bool {
	return reIdentifier.MatchString(expr)
}

func parse(expr string) (*template.Template, error) {
	return template.New("").Option("missingkey=error").Funcs(builtin.BuiltinFunc).Parse(expr)
}

func EvaluateReturnInterface(expr string, data map[string]interface{}) (interface{}, error) {
	tpl, err := parse(expr)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0))
	if err := tpl.Execute(buf, data); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, nil
	}

	var published interface{}
	if err := json.Unmarshal(buf.Bytes(), &published); err != nil {
		return nil, fmt.Errorf("%s, output: '%s'", err.Error(), buf.String())
	}
	return published, nil
}

func EvaluateReturnString(expr string, data map[string]interface{}) (interface{}, error) {
	tpl, err := parse(expr)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0))
	if err := tpl.Execute(buf, data); err != nil {
		return nil, err
	}
	return buf.String(), nil
}

// Evaluate renders expr against data. An expr that is a single {{ }} block
// yields the typed value; anything else renders to a string.
func Evaluate(expr string, data map[string]interface{}) (interface{}, error) {
	matched := reExpression.FindAllStringSubmatchIndex(expr, -1)

	if len(matched) == 1 && matched[0][0] == 0 && matched[0][1] == len(expr) {
		tplStr := fmt.Sprintf(`{{ json (%s) }}`, expr[matched[0][2]:matched[0][3]])
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
