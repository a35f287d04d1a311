package jinja

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateBool(t *testing.T) {
	asserter := assert.New(t)
	data := map[string]interface{}{
		"test": 1,
	}

	expr := "{% _.test == 1 %}"
	if asserter.True(Match(expr)) {
		result, err := Evaluate(expr, data)
		if asserter.NoError(err) {
			asserter.Equal(true, result)
		}
	}
}

func TestEvaluateString(t *testing.T) {
	asserter := assert.New(t)
	data := map[string]interface{}{
		"test": 1,
	}

	expr := "This is {% _.test == 1 %}, but some one is {% _.test == 2 %}, it's different"
	if asserter.True(Match(expr)) {
		result, err := Evaluate(expr, data)
		if asserter.NoError(err) {
			asserter.Equal("This is True, but some one is False, it's different", result)
		}
	}
}

func TestEvaluateNoEscape(t *testing.T) {
	asserter := assert.New(t)
	data := map[string]interface{}{
		"item": map[string]interface{}{"title": `Tom & Jerry "Ltd"`},
	}

	result, err := Evaluate("{% _.item.title %}", data)
	if asserter.NoError(err) {
		asserter.Equal(`Tom & Jerry "Ltd"`, result)
	}

	result, err = Evaluate("Invoice for {% _.item.title %}", data)
	if asserter.NoError(err) {
		asserter.Equal(`Invoice for Tom & Jerry "Ltd"`, result)
	}
}
