package types

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
)

// KeyAttestationExtensionOID identifies the Android key attestation extension
// in an attestation certificate.
var KeyAttestationExtensionOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

// SecurityLevel is the environment a Keymaster/KeyMint implementation runs in.
type SecurityLevel int

const (
	Software SecurityLevel = iota
	TrustedEnvironment
	StrongBox
)

// KeyDescription is the top-level record of the key attestation extension.
// SoftwareEnforced holds the authorizations enforced by the Android system,
// TEEEnforced those enforced by the secure environment.
type KeyDescription struct {
	AttestationVersion       int
	AttestationSecurityLevel SecurityLevel
	KeymasterVersion         int
	KeymasterSecurityLevel   SecurityLevel
	AttestationChallenge     []byte
	UniqueID                 []byte
	SoftwareEnforced         AuthorizationList
	TEEEnforced              AuthorizationList
}

type keyDescriptionASN1 struct {
	AttestationVersion       int
	AttestationSecurityLevel asn1.Enumerated
	KeymasterVersion         int
	KeymasterSecurityLevel   asn1.Enumerated
	AttestationChallenge     []byte
	UniqueID                 []byte
	SoftwareEnforced         asn1.RawValue
	TEEEnforced              asn1.RawValue
}

// ParseKeyDescription parses a DER encoded KeyDescription SEQUENCE, i.e. the
// value of the key attestation extension.
func ParseKeyDescription(der []byte) (KeyDescription, error) {
	var parsed keyDescriptionASN1
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		return KeyDescription{}, fmt.Errorf("unmarshaling key description: %w", err)
	}

	attestationSecurityLevel, err := securityLevel(parsed.AttestationSecurityLevel)
	if err != nil {
		return KeyDescription{}, fmt.Errorf("attestation security level: %w", err)
	}
	keymasterSecurityLevel, err := securityLevel(parsed.KeymasterSecurityLevel)
	if err != nil {
		return KeyDescription{}, fmt.Errorf("keymaster security level: %w", err)
	}

	softwareEnforced, err := ParseAuthorizationList(parsed.SoftwareEnforced.FullBytes, parsed.AttestationVersion)
	if err != nil {
		return KeyDescription{}, fmt.Errorf("parsing software enforced authorizations: %w", err)
	}
	teeEnforced, err := ParseAuthorizationList(parsed.TEEEnforced.FullBytes, parsed.AttestationVersion)
	if err != nil {
		return KeyDescription{}, fmt.Errorf("parsing tee enforced authorizations: %w", err)
	}

	return KeyDescription{
		AttestationVersion:       parsed.AttestationVersion,
		AttestationSecurityLevel: attestationSecurityLevel,
		KeymasterVersion:         parsed.KeymasterVersion,
		KeymasterSecurityLevel:   keymasterSecurityLevel,
		AttestationChallenge:     parsed.AttestationChallenge,
		UniqueID:                 parsed.UniqueID,
		SoftwareEnforced:         softwareEnforced,
		TEEEnforced:              teeEnforced,
	}, nil
}

// ParseAttestationExtension extracts and parses the key attestation extension
// of an attestation certificate.
func ParseAttestationExtension(cert *x509.Certificate) (KeyDescription, error) {
	for _, extension := range cert.Extensions {
		if extension.Id.Equal(KeyAttestationExtensionOID) {
			return ParseKeyDescription(extension.Value)
		}
	}
	return KeyDescription{}, fmt.Errorf("certificate does not carry the key attestation extension %s", KeyAttestationExtensionOID)
}

// Encode DER encodes the KeyDescription SEQUENCE.
func (k *KeyDescription) Encode() ([]byte, error) {
	softwareEnforced, err := k.SoftwareEnforced.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding software enforced authorizations: %w", err)
	}
	teeEnforced, err := k.TEEEnforced.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding tee enforced authorizations: %w", err)
	}

	return asn1.Marshal(keyDescriptionASN1{
		AttestationVersion:       k.AttestationVersion,
		AttestationSecurityLevel: asn1.Enumerated(k.AttestationSecurityLevel),
		KeymasterVersion:         k.KeymasterVersion,
		KeymasterSecurityLevel:   asn1.Enumerated(k.KeymasterSecurityLevel),
		AttestationChallenge:     k.AttestationChallenge,
		UniqueID:                 k.UniqueID,
		SoftwareEnforced:         asn1.RawValue{FullBytes: softwareEnforced},
		TEEEnforced:              asn1.RawValue{FullBytes: teeEnforced},
	})
}

func securityLevel(value asn1.Enumerated) (SecurityLevel, error) {
	level := SecurityLevel(value)
	if level < Software || level > StrongBox {
		return 0, fmt.Errorf("invalid security level: %d", value)
	}
	return level, nil
}
