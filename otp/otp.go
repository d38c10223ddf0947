// Package otp generates and checks RFC 6238 time-based one-time codes for
// entries that carry a second-factor secret.
package otp

import (
	"fmt"
	"time"

	pqotp "github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Period = 30
	Skew   = 1
)

// Generator produces six digit SHA1 codes on a 30 second step, the settings
// every mainstream authenticator app uses.
type Generator struct {
	opts totp.ValidateOpts
}

func NewGenerator() *Generator {
	return &Generator{opts: totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    pqotp.DigitsSix,
		Algorithm: pqotp.AlgorithmSHA1,
	}}
}

// Code returns the code for the time step containing at.
func (g *Generator) Code(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, g.opts)
	if err != nil {
		return "", fmt.Errorf("otp: %w", err)
	}
	return code, nil
}

// Validate accepts a code from the current step or one step either side.
func (g *Generator) Validate(code, secret string, at time.Time) (bool, error) {
	ok, err := totp.ValidateCustom(code, secret, at, g.opts)
	if err != nil {
		return false, fmt.Errorf("otp: %w", err)
	}
	return ok, nil
}

// Remaining is how long the code for at stays current.
func (g *Generator) Remaining(at time.Time) time.Duration {
	step := int64(g.opts.Period)
	left := step - at.Unix()%step
	return time.Duration(left) * time.Second
}

// Key is a freshly generated secret and its provisioning URI.
type Key struct {
	Secret string
	URL    string
}

// NewSecret creates a random secret for issuer and account, for vaults that
// act as the enrolling side.
func NewSecret(issuer, account string) (Key, error) {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Digits:      pqotp.DigitsSix,
		Algorithm:   pqotp.AlgorithmSHA1,
	})
	if err != nil {
		return Key{}, fmt.Errorf("otp: %w", err)
	}
	return Key{Secret: k.Secret(), URL: k.URL()}, nil
}
