package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that all required fields are set and values are valid.
func (c *TrackerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}

	t := c.Transport
	if t.MaxDelay < t.InitialDelay {
		return fmt.Errorf("transport.max_delay (%s) cannot be less than initial_delay (%s)", t.MaxDelay, t.InitialDelay)
	}
	if t.PingTimeout != nil && *t.PingTimeout > 0 && *t.PingTimeout < t.WriteTimeout {
		return fmt.Errorf("transport.ping_timeout (%s) cannot be less than write_timeout (%s)", *t.PingTimeout, t.WriteTimeout)
	}

	seen := make(map[string]bool, len(t.Transports))
	for _, kind := range t.Transports {
		if seen[kind] {
			return fmt.Errorf("transport.transports lists %q twice", kind)
		}
		seen[kind] = true
	}

	return nil
}

// fieldError renders a validator failure as "<yaml.path> <problem>".
func fieldError(fe validator.FieldError) error {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest // drop the root type name
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", path)
	case "url":
		return fmt.Errorf("%s must be an absolute URL, got %q", path, fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", path, fe.Param(), fe.Value())
	case "startswith":
		return fmt.Errorf("%s must start with %q", path, fe.Param())
	case "hostname_port":
		return fmt.Errorf("%s must be host:port, got %q", path, fe.Value())
	case "min":
		return fmt.Errorf("%s must have at least %s entries", path, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be > %s", path, fe.Param())
	case "gte":
		return fmt.Errorf("%s must be >= %s", path, fe.Param())
	case "lte":
		return fmt.Errorf("%s must be <= %s", path, fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", path, fe.Tag())
	}
}
