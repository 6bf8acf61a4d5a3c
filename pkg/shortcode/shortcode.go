// Package shortcode generates and validates fixed-width numeric codes
// that kiosk staff type to pull up a flight.
package shortcode

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Width bounds
const (
	MinWidth     = 1
	MaxWidth     = 9
	DefaultWidth = 4
)

// Source returns a uniform random integer in [0, n).
type Source func(n int64) int64

// Generator produces random codes of a fixed width.
type Generator struct {
	width  int
	space  int64
	source Source
}

// Option configures a Generator
type Option func(*Generator)

// WithSource overrides the random source.
func WithSource(src Source) Option {
	return func(g *Generator) {
		g.source = src
	}
}

// NewGenerator creates a generator for codes of the given width.
func NewGenerator(width int, opts ...Option) (*Generator, error) {
	if width < MinWidth || width > MaxWidth {
		return nil, fmt.Errorf("short code width %d out of range [%d, %d]", width, MinWidth, MaxWidth)
	}

	g := &Generator{
		width:  width,
		space:  pow10(width),
		source: rand.Int64N,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Width returns the number of digits in generated codes
func (g *Generator) Width() int {
	return g.width
}

// Keyspace returns the number of distinct codes of this width
func (g *Generator) Keyspace() int64 {
	return g.space
}

// Generate returns a uniformly random zero-padded code.
func (g *Generator) Generate() string {
	return g.Format(g.source(g.space))
}

// Choose returns a uniform random index in [0, n) from the generator's source.
func (g *Generator) Choose(n int64) int64 {
	return g.source(n)
}

// Format renders n as a code of the generator's width.
func (g *Generator) Format(n int64) string {
	return fmt.Sprintf("%0*d", g.width, n)
}

// Matches reports whether code is valid and has the generator's width.
func (g *Generator) Matches(code string) bool {
	return len(code) == g.width && Valid(code)
}

// Valid reports whether code is a non-empty run of at most MaxWidth ASCII digits.
func Valid(code string) bool {
	if code == "" || len(code) > MaxWidth {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Normalize trims whitespace typed at the kiosk and validates the result.
func Normalize(code string) (string, bool) {
	code = strings.TrimSpace(code)
	return code, Valid(code)
}

// Value parses a valid code into its integer value.
func Value(code string) (int64, bool) {
	if !Valid(code) {
		return 0, false
	}
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
