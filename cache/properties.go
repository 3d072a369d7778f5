package cache

import (
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
)

// Setter assigns a property from its string form.
type Setter func(raw string) error

// Configurable is implemented by layers that accept named properties.
type Configurable interface {
	Setters() map[string]Setter
}

// Sizer is implemented by layers whose capacity the Builder may set.
type Sizer interface {
	SetSize(size int)
}

// Initializer is implemented by layers that need a hook after their
// properties have been applied.
type Initializer interface {
	Initialize() error
}

// Properties is the open-ended property bag applied to every layer by name.
type Properties map[string]string

// ApplyTo assigns every property c declares a setter for. Names c does not
// know are ignored.
func (p Properties) ApplyTo(c Cache) error {
	cfg, ok := c.(Configurable)
	if !ok || len(p) == 0 {
		return nil
	}
	setters := cfg.Setters()
	for _, name := range slices.Sorted(maps.Keys(p)) {
		set, ok := setters[name]
		if !ok {
			continue
		}
		if err := set(p[name]); err != nil {
			return errors.Wrapf(err, "property %q of %T", name, c)
		}
	}
	return nil
}

// Bind returns a Setter coercing the raw string to T before calling set.
// Supported: string, bool, signed and unsigned integers, float32, float64
// and time.Duration. Any other T fails with ErrConfiguration when used.
func Bind[T any](set func(T)) Setter {
	return func(raw string) error {
		var v T
		if err := coerce(raw, &v); err != nil {
			return err
		}
		set(v)
		return nil
	}
}

func coerce(raw string, dst any) error {
	trimmed := strings.TrimSpace(raw)
	var err error
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *bool:
		*p, err = strconv.ParseBool(trimmed)
	case *time.Duration:
		*p, err = ParseDuration(trimmed)
	case *int:
		err = parseSigned(trimmed, p)
	case *int8:
		err = parseSigned(trimmed, p)
	case *int16:
		err = parseSigned(trimmed, p)
	case *int32:
		err = parseSigned(trimmed, p)
	case *int64:
		err = parseSigned(trimmed, p)
	case *uint:
		err = parseUnsigned(trimmed, p)
	case *uint8:
		err = parseUnsigned(trimmed, p)
	case *uint16:
		err = parseUnsigned(trimmed, p)
	case *uint32:
		err = parseUnsigned(trimmed, p)
	case *uint64:
		err = parseUnsigned(trimmed, p)
	case *float32:
		var f float64
		f, err = strconv.ParseFloat(trimmed, 32)
		*p = float32(f)
	case *float64:
		*p, err = strconv.ParseFloat(trimmed, 64)
	default:
		return configErrorf("unsupported property type %s", reflect.TypeOf(dst).Elem())
	}
	if err != nil {
		return errors.Wrapf(ErrConfiguration, "cannot convert %q to %s: %v", raw, reflect.TypeOf(dst).Elem(), err)
	}
	return nil
}

func parseSigned[T ~int | ~int8 | ~int16 | ~int32 | ~int64](raw string, p *T) error {
	n, err := strconv.ParseInt(raw, 10, reflect.TypeFor[T]().Bits())
	if err != nil {
		return err
	}
	*p = T(n)
	return nil
}

func parseUnsigned[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](raw string, p *T) error {
	n, err := strconv.ParseUint(raw, 10, reflect.TypeFor[T]().Bits())
	if err != nil {
		return err
	}
	*p = T(n)
	return nil
}

// ParseDuration parses an interval. A bare integer is milliseconds; anything
// else uses the extended syntax of str2duration ("90s", "1h30m", "2d").
func ParseDuration(raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return str2duration.ParseDuration(raw)
}
