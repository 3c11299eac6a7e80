package mesh

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"

	"golang.org/x/crypto/curve25519"

	"github.com/wgmesh/meshctl/internal/errx"
)

// Key is an asymmetric key pair for a point-to-point encrypted tunnel.
// Both fields are base64-encoded, matching the format `wg genkey`/`wg pubkey`
// produce, since the private key is handed to the `wg` CLI at tunnel
// configuration time.
type Key struct {
	Private string `json:"sk"`
	Public  string `json:"pk"`
}

// GenerateKey creates a fresh curve25519 key pair.
func GenerateKey() (Key, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return Key{}, errx.With(ErrPrimitive, ": generate private key: %w", err)
	}
	// Clamp per RFC 7748 so the scalar is a valid Curve25519 private key.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return Key{}, errx.With(ErrPrimitive, ": derive public key: %w", err)
	}

	return Key{
		Private: base64.StdEncoding.EncodeToString(priv[:]),
		Public:  base64.StdEncoding.EncodeToString(pub),
	}, nil
}

// Dump serializes the key pair as JSON to the given path.
func (k Key) Dump(path string) error {
	data, err := json.Marshal(k)
	if err != nil {
		return errx.With(ErrPrimitive, ": marshal key: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errx.With(ErrPrimitive, ": write key file: %w", err)
	}
	return nil
}

// LoadKey reads a key pair previously written by Dump.
func LoadKey(path string) (Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Key{}, errx.With(ErrPrimitive, ": read key file: %w", err)
	}
	var k Key
	if err := json.Unmarshal(data, &k); err != nil {
		return Key{}, errx.With(ErrPrimitive, ": unmarshal key: %w", err)
	}
	return k, nil
}

// writePrivateKeyFile writes the private key alone to a temp file in the
// format `wg set <iface> private-key <file>` expects. Callers must remove
// the file once the tunnel primitive no longer needs it.
func (k Key) writePrivateKeyFile(path string) error {
	return os.WriteFile(path, []byte(k.Private), 0600)
}
