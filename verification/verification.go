/*
Package verification implements verification of Android key attestation
certificate chains.

A key attestation statement is an X.509 certificate chain:

	┌──────────────────────┐
	│   Google Root Cert   │
	└──────────┬───────────┘
	           │ Signs
	           ▼
	┌──────────────────────┐
	│  Intermediate Cert   │
	└──────────┬───────────┘
	           │ Signs
	           ▼
	┌──────────────────────┐
	│   Attestation Cert   │ ◄── carries the key attestation extension
	└──────────────────────┘

The leaf certificate certifies the attested key pair and carries the key
attestation extension (OID 1.3.6.1.4.1.11129.2.1.17) describing the key's
authorizations and the device state it was created under.

Verification checks that the chain is rooted in a caller-supplied root
certificate, that no certificate of the chain appears on Google's attestation
status list, and returns the decoded key description. Judging the returned
authorizations (challenge, boot state, patch levels) is the caller's policy
decision.
*/
package verification

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"math/big"

	"github.com/teeverify/android-keyattest/verification/crypto"
	"github.com/teeverify/android-keyattest/verification/status"
	"github.com/teeverify/android-keyattest/verification/types"
)

type statusClient interface {
	GetEntry(ctx context.Context, serialNumber *big.Int) (*status.Entry, error)
}

// KeyAttestationVerifier verifies Android key attestation certificate chains.
type KeyAttestationVerifier struct {
	status statusClient
	rootCA *x509.Certificate
}

// New creates a KeyAttestationVerifier trusting chains rooted in the given
// root certificate.
func New(rootCA *x509.Certificate) *KeyAttestationVerifier {
	return &KeyAttestationVerifier{
		status: status.New(),
		rootCA: rootCA,
	}
}

// Verify verifies a PEM encoded, leaf-first attestation certificate chain and
// returns the key description of its leaf certificate.
func (v *KeyAttestationVerifier) Verify(ctx context.Context, certChainPEM []byte) (types.KeyDescription, error) {
	chain, err := crypto.ParsePEMCertificateChain(certChainPEM)
	if err != nil {
		return types.KeyDescription{}, fmt.Errorf("parsing certificate chain: %w", err)
	}
	return v.VerifyCertChain(ctx, chain)
}

// VerifyCertChain verifies a leaf-first attestation certificate chain and
// returns the key description of its leaf certificate.
func (v *KeyAttestationVerifier) VerifyCertChain(ctx context.Context, chain []*x509.Certificate) (types.KeyDescription, error) {
	if len(chain) == 0 {
		return types.KeyDescription{}, errors.New("certificate chain is empty")
	}

	if err := crypto.VerifyCertificateChain(chain, v.rootCA); err != nil {
		return types.KeyDescription{}, fmt.Errorf("verifying certificate chain: %w", err)
	}

	for _, cert := range chain {
		entry, err := v.status.GetEntry(ctx, cert.SerialNumber)
		if err != nil {
			return types.KeyDescription{}, fmt.Errorf("checking revocation status of certificate %x: %w", cert.SerialNumber, err)
		}
		if entry != nil {
			return types.KeyDescription{}, fmt.Errorf("certificate %x is %s: %s", cert.SerialNumber, entry.Status, entry.Reason)
		}
	}

	keyDescription, err := types.ParseAttestationExtension(chain[0])
	if err != nil {
		return types.KeyDescription{}, fmt.Errorf("parsing key attestation extension: %w", err)
	}
	return keyDescription, nil
}
