// Package slakeys loads the per-chip RSA private keys used to answer a
// stage-1 SLA (Serial Link Authentication) challenge, spec.md §4.3.
package slakeys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/barnettlynn/flashkit/pkg/stage1"
)

// rsaKey adapts an *rsa.PrivateKey to stage1.SLAKey. Spec.md §4.3 describes
// SLA's signature step as a raw RSA private-key operation over the
// challenge bytes (no hash, no padding scheme is named), so Sign performs
// the modular exponentiation directly rather than going through
// crypto/rsa's PKCS#1/PSS signing paths, which both require a digest.
type rsaKey struct {
	name string
	n    *big.Int
	d    *big.Int
	size int // key size in bytes, used to left-pad the signature
}

func (k *rsaKey) Sign(challenge []byte) ([]byte, error) {
	m := new(big.Int).SetBytes(challenge)
	if m.Cmp(k.n) >= 0 {
		return nil, fmt.Errorf("slakeys: challenge too large for key %s", k.name)
	}
	sig := new(big.Int).Exp(m, k.d, k.n)
	out := make([]byte, k.size)
	sig.FillBytes(out)
	return out, nil
}

// LoadDir loads every PEM-encoded RSA private key (.pem) in dir, skipping
// anything that isn't a recognizable key file rather than aborting the
// whole load.
func LoadDir(dir string) ([]stage1.SLAKey, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var keys []stage1.SLAKey
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".pem" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		k, err := loadRSAKey(path)
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func loadRSAKey(path string) (*rsaKey, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(content)
	if block == nil {
		return nil, fmt.Errorf("slakeys: %s is not PEM-encoded", path)
	}

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("slakeys: parse %s: %w", path, err)
		}
		rsaPriv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("slakeys: %s is not an RSA private key", path)
		}
		priv = rsaPriv
	}

	return &rsaKey{
		name: filepath.Base(path),
		n:    priv.N,
		d:    priv.D,
		size: (priv.N.BitLen() + 7) / 8,
	}, nil
}
