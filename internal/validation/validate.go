// Package validation turns an untrusted request body into a record that is
// safe to persist for a given resource.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/resource"
)

// Mode selects create or update semantics.
type Mode int

const (
	// Create requires every required field to be present and non-empty.
	Create Mode = iota
	// Update only checks the keys that are present.
	Update
)

// DateLayout is the storage form of date fields.
const DateLayout = "2006-01-02"

var validate = validator.New(validator.WithRequiredStructEnabled())

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
}

// Struct validates a request struct by its `validate` tags and reports the
// failures keyed by json name.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.BadRequest("malformed request", goerr.V("error", err.Error()))
	}
	out := &apperr.ValidationError{}
	for _, fe := range verrs {
		out.Add(fe.Field(), ruleMessage(validator.ValidationErrors{fe}))
	}
	return out
}

// Validate checks payload against cfg and returns the coerced values keyed by
// column. The returned record never contains server-controlled keys. All
// failures are collected into one *apperr.ValidationError.
func Validate(cfg *resource.Config, payload map[string]any, mode Mode) (resource.Record, error) {
	out := resource.Record{}
	verr := &apperr.ValidationError{}

	for key, raw := range payload {
		if cfg.Reserved(key) {
			continue
		}
		if key == resource.ColPosition && cfg.Ordered {
			if raw == nil {
				continue
			}
			pos, ok := asInt(raw)
			if !ok || pos < 0 {
				verr.Add(key, "must be a non-negative integer")
				continue
			}
			out[key] = pos
			continue
		}
		f, ok := cfg.Field(key)
		if !ok {
			verr.Add(key, "unknown field")
			continue
		}
		if f.Immutable && mode == Update {
			continue
		}
		if isEmpty(raw) {
			if f.Required {
				verr.Add(key, "required")
				continue
			}
			out[key] = nil
			continue
		}
		v, msg := coerce(f, raw)
		if msg == "" && f.Rules != "" {
			msg = ruleMessage(validate.Var(v, f.Rules))
		}
		if msg == "" && f.Validate != nil {
			msg = f.Validate(v)
		}
		if msg != "" {
			verr.Add(key, msg)
			continue
		}
		out[key] = v
	}

	if mode == Create {
		for _, f := range cfg.Fields {
			if _, present := payload[f.Key]; present {
				continue
			}
			if f.Required {
				verr.Add(f.Key, "required")
			} else if f.Type == resource.Switch {
				out[f.Key] = false
			}
		}
	}

	if !verr.Empty() {
		return nil, verr
	}
	return out, nil
}

// Decode parses a JSON body into a payload map. Anything but an object is a
// validation failure.
func Decode(body []byte) (map[string]any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		verr := &apperr.ValidationError{}
		verr.Add("body", "must be a JSON object")
		return nil, verr
	}
	return payload, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func coerce(f resource.Field, raw any) (any, string) {
	switch f.Type {
	case resource.Switch:
		b, ok := raw.(bool)
		if !ok {
			return nil, "must be a boolean"
		}
		return b, ""
	case resource.Select:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		if !slices.Contains(f.Options, s) {
			return nil, "must be one of: " + strings.Join(f.Options, ", ")
		}
		return s, ""
	case resource.Color:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		s = strings.TrimSpace(s)
		if validate.Var(s, "hexcolor") != nil {
			return nil, "must be a hex color"
		}
		return strings.ToLower(s), ""
	case resource.Date:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a date"
		}
		s = strings.TrimSpace(s)
		if d, err := time.Parse(DateLayout, s); err == nil {
			return d.Format(DateLayout), ""
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC().Format(DateLayout), ""
		}
		return nil, "must be a date (YYYY-MM-DD)"
	default:
		s, ok := raw.(string)
		if !ok {
			return nil, "must be a string"
		}
		return strings.TrimSpace(s), ""
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func ruleMessage(err error) string {
	if err == nil {
		return ""
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid value"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "required"
	case "slug":
		return "must be lowercase letters, digits and dashes"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "email":
		return "must be an email address"
	case "url":
		return "must be a URL"
	case "uuid", "uuid4":
		return "must be a UUID"
	case "alphanum":
		return "must be alphanumeric"
	case "uppercase":
		return "must be uppercase"
	default:
		return fmt.Sprintf("failed rule '%s'", fe.Tag())
	}
}
