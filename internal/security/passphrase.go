// Package security generates and validates the LUKS passphrase material
// the storage engine seals to TPM, zeroizing it on every release path per
// spec §5 ("the global LUKS passphrase buffer is zeroized immediately
// after use").
package security

import (
	"crypto/rand"
	"fmt"

	"github.com/muesli/crunchy"

	"github.com/open-edge-platform/host-servicer/internal/enginerr"
)

const randomPassphraseLength = 64

// Passphrase is a mutable byte buffer carrying secret material. Callers
// must call Zeroize on every exit path, mirroring the teacher's
// "validate before using secret material" shape in imagesign.go (check
// before the irreversible sbsign step) generalized to "destroy after use".
type Passphrase struct {
	buf []byte
}

// NewRandom generates a cryptographically random passphrase of
// randomPassphraseLength printable ASCII characters.
func NewRandom() (*Passphrase, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, randomPassphraseLength)
	idx := make([]byte, randomPassphraseLength)
	if _, err := rand.Read(idx); err != nil {
		return nil, enginerr.Wrap(enginerr.Internal, "security.NewRandom", "failed to read random bytes", err)
	}
	for i, b := range idx {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return &Passphrase{buf: buf}, nil
}

// FromStatic wraps a caller-supplied static passphrase after rejecting
// weak/dictionary passwords with muesli/crunchy, the same library class
// the rest of the ambient stack favors over a hand-rolled strength check.
func FromStatic(value string) (*Passphrase, error) {
	if value == "" {
		return nil, enginerr.New(enginerr.InvalidInput, "security.FromStatic", "static passphrase is empty")
	}
	validator := crunchy.NewValidator()
	if err := validator.Check(value); err != nil {
		return nil, enginerr.Wrap(enginerr.InvalidInput, "security.FromStatic",
			"static passphrase failed strength validation", err)
	}
	return &Passphrase{buf: []byte(value)}, nil
}

// String exposes the passphrase for handoff to an external tool
// (luksFormat, cryptsetup) via argv/stdin. Callers must not retain the
// returned string beyond the immediate exec call.
func (p *Passphrase) String() string {
	if p == nil {
		return ""
	}
	return string(p.buf)
}

// Zeroize overwrites the backing buffer with zero bytes. Safe to call more
// than once and on a nil receiver.
func (p *Passphrase) Zeroize() {
	if p == nil {
		return
	}
	for i := range p.buf {
		p.buf[i] = 0
	}
}

// Resolve returns the passphrase material for the configured source,
// generating a random passphrase or validating a static one.
func Resolve(source string, static string) (*Passphrase, error) {
	switch source {
	case "random", "":
		return NewRandom()
	case "static":
		return FromStatic(static)
	default:
		return nil, enginerr.New(enginerr.InvalidInput, "security.Resolve", fmt.Sprintf("unknown passphrase source %q", source))
	}
}
