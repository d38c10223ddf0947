// Package passgen builds random passwords from selectable character classes.
package passgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	DefaultLength = 16
	MinLength     = 8
	MaxLength     = 128
)

const (
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower   = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
	symbols = "!@#$%^&*()-_=+[]{};:,.<>?"
)

var ErrLength = errors.New("passgen: length out of range")

// Options selects the length and character classes. With no class selected
// every class is used; a zero Length means DefaultLength.
type Options struct {
	Length  int
	Upper   bool
	Lower   bool
	Digits  bool
	Symbols bool
}

func (o Options) classes() []string {
	var cs []string
	if o.Upper {
		cs = append(cs, upper)
	}
	if o.Lower {
		cs = append(cs, lower)
	}
	if o.Digits {
		cs = append(cs, digits)
	}
	if o.Symbols {
		cs = append(cs, symbols)
	}
	if len(cs) == 0 {
		cs = []string{upper, lower, digits, symbols}
	}
	return cs
}

// Generate returns a password holding at least one character of every
// selected class.
func Generate(o Options) (string, error) {
	if o.Length == 0 {
		o.Length = DefaultLength
	}
	if o.Length < MinLength || o.Length > MaxLength {
		return "", fmt.Errorf("%w: %d not in [%d, %d]", ErrLength, o.Length, MinLength, MaxLength)
	}

	classes := o.classes()
	var charset string
	for _, c := range classes {
		charset += c
	}

	out := make([]byte, 0, o.Length)
	for _, c := range classes {
		b, err := pick(c)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}
	for len(out) < o.Length {
		b, err := pick(charset)
		if err != nil {
			return "", err
		}
		out = append(out, b)
	}
	if err := shuffle(out); err != nil {
		return "", err
	}
	return string(out), nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("passgen: %w", err)
	}
	return int(v.Int64()), nil
}

func pick(set string) (byte, error) {
	i, err := randIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// Fisher-Yates
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
