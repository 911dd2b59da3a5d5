// Package credential provisions bootstrap secrets and hashes permanent
// passwords for society and resident accounts.
package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BootstrapAlphabet is the character set of generated one-time passwords
const BootstrapAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()_+[]{}"

// Provisioner generates one-time bootstrap passwords for new residents
type Provisioner struct {
	ownerLength  int
	tenantLength int
}

// NewProvisioner creates a provisioner. Owners usually get a longer secret
// than tenants.
func NewProvisioner(ownerLength, tenantLength int) *Provisioner {
	if ownerLength <= 0 {
		ownerLength = 10
	}
	if tenantLength <= 0 {
		tenantLength = 8
	}
	return &Provisioner{ownerLength: ownerLength, tenantLength: tenantLength}
}

// ForRole returns a bootstrap password sized for an owner or a tenant.
func (p *Provisioner) ForRole(isOwner bool) (string, error) {
	if isOwner {
		return p.BootstrapPassword(p.ownerLength)
	}
	return p.BootstrapPassword(p.tenantLength)
}

// BootstrapPassword returns a uniformly random string of the given length
// over BootstrapAlphabet.
func (p *Provisioner) BootstrapPassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("bootstrap password length must be positive")
	}

	max := big.NewInt(int64(len(BootstrapAlphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		sb.WriteByte(BootstrapAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// MatchBootstrap compares a submitted password to a stored bootstrap secret.
// Both sides are trimmed and NFC-normalized before a constant-time compare.
func MatchBootstrap(submitted, stored string) bool {
	if stored == "" {
		return false
	}
	a := norm.NFC.String(strings.TrimSpace(submitted))
	b := norm.NFC.String(strings.TrimSpace(stored))
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
