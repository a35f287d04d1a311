package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"autoflow/app/expressions"
	"autoflow/app/objects"
	"autoflow/pkg/contextx"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeParams fills a typed parameter struct from a raw parameter map and
// validates it. Failures come back as a ValidationError keyed by JSON field.
// With partial set, errors on keys that still hold template expressions are
// ignored: their value is only known once rendered.
func decodeParams(action string, raw map[string]interface{}, out interface{}, partial bool) error {
	templated := map[string]bool{}
	if partial {
		for k, v := range raw {
			if s, ok := v.(string); ok && expressions.HasExpression(s) {
				templated[k] = true
			}
		}
	}

	fields := map[string]string{}
	b, err := json.Marshal(raw)
	if err != nil {
		return objects.NewValidationError("parameters are not serializable", map[string]string{"parameters": err.Error()})
	}
	if err := json.Unmarshal(b, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			fields["parameters"] = err.Error()
		} else if !templated[typeErr.Field] {
			fields[typeErr.Field] = fmt.Sprintf("must be %s", typeErr.Type.String())
		}
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			name := fe.Field()
			if templated[name] {
				continue
			}
			if _, seen := fields[name]; !seen {
				fields[name] = describe(fe)
			}
		}
	}
	if len(fields) > 0 {
		return objects.NewValidationError(fmt.Sprintf("invalid parameters for %s", action), fields)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "required_without":
		return "required unless " + fe.Param() + " is given"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be an email address"
	case "datetime":
		return "must be a date formatted " + fe.Param()
	}
	return "failed " + fe.Tag()
}

// typedHandler adapts a function over a decoded parameter struct P.
type typedHandler[P any] struct {
	name string
	deps *Deps
	run  func(ctx *actionContext, params *P) (interface{}, error)
}

func (h *typedHandler[P]) Name() string {
	return h.name
}

func (h *typedHandler[P]) Validate(params map[string]interface{}, partial bool) error {
	var p P
	return decodeParams(h.name, params, &p, partial)
}

func (h *typedHandler[P]) Execute(ctx *contextx.Context, params map[string]interface{}, wctx *objects.WorkflowContext) (interface{}, error) {
	var p P
	if err := decodeParams(h.name, params, &p, false); err != nil {
		return nil, err
	}
	if wctx == nil || wctx.TenantID() == "" {
		return nil, &objects.AmbiguousContextError{Reason: "action " + h.name + " has no acting user"}
	}
	return h.run(&actionContext{Context: ctx, wctx: wctx, deps: h.deps}, &p)
}

func newHandler[P any](name string, deps *Deps, run func(ctx *actionContext, params *P) (interface{}, error)) Handler {
	return &typedHandler[P]{name: name, deps: deps, run: run}
}
