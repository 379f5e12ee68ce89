package eventsource

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

var (
	placeholder  = regexp.MustCompile(`\{\{([\s\S]+?)\}\}`)
	callPattern  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\s*\(([^()]*)\)$`)
	propertyPath = regexp.MustCompile(`^faker\.[A-Za-z0-9_.]+$`)
)

type fakerFunc func(f *gofakeit.Faker, args []float64) string

var fakerFuncs = map[string]fakerFunc{
	"string.uuid":         func(*gofakeit.Faker, []float64) string { return uuid.NewString() },
	"datatype.uuid":       func(*gofakeit.Faker, []float64) string { return uuid.NewString() },
	"person.fullName":     func(f *gofakeit.Faker, _ []float64) string { return f.Name() },
	"name.fullName":       func(f *gofakeit.Faker, _ []float64) string { return f.Name() },
	"person.firstName":    func(f *gofakeit.Faker, _ []float64) string { return f.FirstName() },
	"name.firstName":      func(f *gofakeit.Faker, _ []float64) string { return f.FirstName() },
	"person.lastName":     func(f *gofakeit.Faker, _ []float64) string { return f.LastName() },
	"name.lastName":       func(f *gofakeit.Faker, _ []float64) string { return f.LastName() },
	"internet.ip":         func(f *gofakeit.Faker, _ []float64) string { return f.IPv4Address() },
	"internet.ipv4":       func(f *gofakeit.Faker, _ []float64) string { return f.IPv4Address() },
	"internet.ipv6":       func(f *gofakeit.Faker, _ []float64) string { return f.IPv6Address() },
	"internet.domainName": func(f *gofakeit.Faker, _ []float64) string { return f.DomainName() },
	"internet.url":        func(f *gofakeit.Faker, _ []float64) string { return f.URL() },
	"internet.email":      func(f *gofakeit.Faker, _ []float64) string { return f.Email() },
	"internet.userName":   func(f *gofakeit.Faker, _ []float64) string { return f.Username() },
	"internet.username":   func(f *gofakeit.Faker, _ []float64) string { return f.Username() },
	"company.name":        func(f *gofakeit.Faker, _ []float64) string { return f.Company() },
	"company.companyName": func(f *gofakeit.Faker, _ []float64) string { return f.Company() },
	"location.city":       func(f *gofakeit.Faker, _ []float64) string { return f.City() },
	"address.city":        func(f *gofakeit.Faker, _ []float64) string { return f.City() },
	"lorem.word":          func(f *gofakeit.Faker, _ []float64) string { return f.Word() },
	"hacker.noun":         func(f *gofakeit.Faker, _ []float64) string { return f.Noun() },
	"system.appName":      func(f *gofakeit.Faker, _ []float64) string { return f.AppName() },
	"number.int":          numberInRange,
	"datatype.number":     numberInRange,
}

// expand replaces every {{ expr }} in the raw file text. Results are
// inserted without quotes, so templates normally sit inside JSON strings.
func (s *FileSource) expand(text string) (string, error) {
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		if firstErr != nil {
			return m
		}
		expr := strings.TrimSpace(placeholder.FindStringSubmatch(m)[1])
		value, err := s.evaluate(expr)
		if err != nil {
			firstErr = fmt.Errorf("%w: template %q: %v", ErrInvalidEventFile, expr, err)
			return m
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func (s *FileSource) evaluate(expr string) (string, error) {
	name, rawArgs := expr, ""
	if m := callPattern.FindStringSubmatch(expr); m != nil {
		name, rawArgs = m[1], m[2]
	} else if !propertyPath.MatchString(expr) {
		return "", fmt.Errorf("unsupported expression")
	}

	args, err := parseArgs(rawArgs)
	if err != nil {
		return "", err
	}

	if name == "timestamp" {
		return s.timestamp(args)
	}
	if path, ok := strings.CutPrefix(name, "faker."); ok {
		fn, ok := fakerFuncs[path]
		if !ok {
			return "", fmt.Errorf("unknown faker helper %q", path)
		}
		return escape(fn(s.faker, args)), nil
	}
	return "", fmt.Errorf("unknown helper %q", name)
}

// timestamp(min) is now+min seconds; timestamp(min, max) picks a random
// whole-second offset between the two, inclusive.
func (s *FileSource) timestamp(args []float64) (string, error) {
	var offset time.Duration
	switch len(args) {
	case 1:
		offset = time.Duration(args[0] * float64(time.Second))
	case 2:
		lo, hi := int(args[0]), int(args[1])
		if lo > hi {
			lo, hi = hi, lo
		}
		offset = time.Duration(s.faker.Number(lo, hi)) * time.Second
	default:
		return "", fmt.Errorf("timestamp takes one or two offsets, got %d", len(args))
	}
	return s.now().Add(offset).UTC().Format("2006-01-02T15:04:05.000Z"), nil
}

func numberInRange(f *gofakeit.Faker, args []float64) string {
	lo, hi := 0, 1000
	switch len(args) {
	case 1:
		hi = int(args[0])
	case 2:
		lo, hi = int(args[0]), int(args[1])
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return strconv.Itoa(f.Number(lo, hi))
}

func parseArgs(raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	args := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.Trim(strings.TrimSpace(p), `'"`), 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a number", strings.TrimSpace(p))
		}
		args = append(args, v)
	}
	return args, nil
}

// escape makes a generated value safe to drop inside a JSON string.
func escape(v string) string {
	b, _ := json.Marshal(v)
	return string(b[1 : len(b)-1])
}
