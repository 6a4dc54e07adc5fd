// Package crypto implements common crypto operations used to verify Android
// key attestation certificate chains.
package crypto

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ParsePEMCertificateChain parses a certificate chain from a PEM-encoded byte
// slice, leaf first.
func ParsePEMCertificateChain(certChainPEM []byte) ([]*x509.Certificate, error) {
	var chain []*x509.Certificate
	for block, rest := pem.Decode(certChainPEM); block != nil; block, rest = pem.Decode(rest) {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate from PEM: %w", err)
		}

		chain = append(chain, cert)
	}
	return chain, nil
}

// MustParsePEMCertificate parses a single certificate from a PEM-encoded byte slice.
// If multiple certificates are present, only the first one is returned.
// It panics if the certificate is invalid or the PEM data contains no certificates.
func MustParsePEMCertificate(certPEM []byte) *x509.Certificate {
	certs, err := ParsePEMCertificateChain(certPEM)
	if err != nil {
		panic(err)
	}
	if len(certs) == 0 {
		panic("expected at least one certificate")
	}
	return certs[0]
}

// VerifyCertificateChain checks that each certificate of a leaf-first chain is
// signed by its successor and that the chain terminates in the given root.
// A chain whose last certificate is the root itself is accepted if the root is
// self-signed.
func VerifyCertificateChain(chain []*x509.Certificate, root *x509.Certificate) error {
	if len(chain) == 0 {
		return errors.New("certificate chain is empty")
	}

	for i := 0; i < len(chain)-1; i++ {
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			return fmt.Errorf("certificate %d of the chain is not signed by its issuer: %w", i, err)
		}
	}
	if err := chain[len(chain)-1].CheckSignatureFrom(root); err != nil {
		return fmt.Errorf("certificate chain is not rooted in the expected root certificate: %w", err)
	}
	return nil
}
