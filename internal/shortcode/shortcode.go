// Package shortcode generates and validates short codes.
//
// A generated code is derived from the target URL and a fresh random salt, so
// shortening the same URL twice yields two independent codes. Uniqueness is
// never checked up front: every candidate is handed to a ClaimFunc that
// atomically inserts it, and a collision reported by the claim triggers a new
// attempt with a new salt.
package shortcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the set of characters generated codes are drawn from.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	DefaultLength       = 7
	DefaultMaxAttempts  = 5
	DefaultMaxURLLength = 2048

	saltLength = 12
	// digitsPerBlock is how many base-62 digits one 64-bit hash can fill.
	digitsPerBlock = 10
)

var customCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

var reservedCodes = map[string]struct{}{
	"api":     {},
	"health":  {},
	"metrics": {},
	"swagger": {},
	"docs":    {},
}

// ClaimFunc atomically reserves code. It must return an error matching
// entity.ErrShortCodeExists when the code is already taken.
type ClaimFunc func(ctx context.Context, code string) error

type Generator struct {
	length       int
	maxAttempts  int
	maxURLLength int
	schemes      map[string]struct{}
	validate     *validator.Validate
	nonce        func() (string, error)
}

type Option func(*Generator)

func WithLength(n int) Option {
	return func(g *Generator) {
		g.length = n
	}
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		g.maxAttempts = n
	}
}

func WithMaxURLLength(n int) Option {
	return func(g *Generator) {
		g.maxURLLength = n
	}
}

func WithAllowedSchemes(schemes ...string) Option {
	return func(g *Generator) {
		g.schemes = make(map[string]struct{}, len(schemes))
		for _, s := range schemes {
			g.schemes[strings.ToLower(s)] = struct{}{}
		}
	}
}

func withNonce(fn func() (string, error)) Option {
	return func(g *Generator) {
		g.nonce = fn
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		length:       DefaultLength,
		maxAttempts:  DefaultMaxAttempts,
		maxURLLength: DefaultMaxURLLength,
		schemes: map[string]struct{}{
			"http":  {},
			"https": {},
		},
		validate: validator.New(),
		nonce: func() (string, error) {
			return gonanoid.New(saltLength)
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Validate checks that targetURL is an absolute URL with an allowed scheme
// and a host.
func (g *Generator) Validate(targetURL string) error {
	const op = "shortcode.Generator.Validate"

	if len(targetURL) > g.maxURLLength {
		return fmt.Errorf("%s: url longer than %d bytes: %w", op, g.maxURLLength, entity.ErrInvalidURL)
	}

	if err := g.validate.Var(targetURL, "required,url"); err != nil {
		return fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	if _, ok := g.schemes[strings.ToLower(u.Scheme)]; !ok {
		return fmt.Errorf("%s: scheme %q not allowed: %w", op, u.Scheme, entity.ErrInvalidURL)
	}

	if u.Host == "" {
		return fmt.Errorf("%s: missing host: %w", op, entity.ErrInvalidURL)
	}

	return nil
}

// Candidate deterministically derives a code of the configured length from
// targetURL and salt.
func (g *Generator) Candidate(targetURL, salt string) string {
	return Candidate(targetURL, salt, g.length)
}

// Candidate derives a code of the given length from targetURL and salt.
func Candidate(targetURL, salt string, length int) string {
	code := make([]byte, length)

	var (
		h       uint64
		counter [8]byte
		block   uint64
	)

	for i := 0; i < length; i++ {
		if i%digitsPerBlock == 0 {
			d := xxhash.New()
			d.WriteString(targetURL)
			d.Write([]byte{0})
			d.WriteString(salt)
			if block > 0 {
				binary.BigEndian.PutUint64(counter[:], block)
				d.Write(counter[:])
			}
			h = d.Sum64()
			block++
		}

		code[i] = Alphabet[h%uint64(len(Alphabet))]
		h /= uint64(len(Alphabet))
	}

	return string(code)
}

// Generate validates targetURL and claims freshly derived codes until one is
// accepted or the attempt limit is reached.
func (g *Generator) Generate(ctx context.Context, targetURL string, claim ClaimFunc) (string, error) {
	const op = "shortcode.Generator.Generate"

	if err := g.Validate(targetURL); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	for i := 0; i < g.maxAttempts; i++ {
		salt, err := g.nonce()
		if err != nil {
			return "", fmt.Errorf("%s: failed to generate salt: %w", op, err)
		}

		code := g.Candidate(targetURL, salt)

		if err := claim(ctx, code); err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return "", fmt.Errorf("%s: failed to claim short code: %w", op, err)
		}

		return code, nil
	}

	return "", fmt.Errorf("%s: %d attempts collided: %w", op, g.maxAttempts, entity.ErrCodeSpaceExhausted)
}

// ValidateCustom checks the shape of a caller-chosen code.
func ValidateCustom(code string) error {
	const op = "shortcode.ValidateCustom"

	if !customCodeRe.MatchString(code) {
		return fmt.Errorf("%s: %w", op, entity.ErrInvalidCode)
	}

	if _, ok := reservedCodes[strings.ToLower(code)]; ok {
		return fmt.Errorf("%s: %q is reserved: %w", op, code, entity.ErrInvalidCode)
	}

	return nil
}
