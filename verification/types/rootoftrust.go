package types

import (
	"encoding/asn1"
	"fmt"
)

// VerifiedBootState describes how the device booted.
type VerifiedBootState int

const (
	Verified VerifiedBootState = iota
	SelfSigned
	Unverified
	Failed
)

// RootOfTrust describes the boot state the key was created under.
// VerifiedBootHash is only carried by records with attestation version 3 or
// later; it is nil for older versions.
type RootOfTrust struct {
	VerifiedBootKey   []byte
	DeviceLocked      bool
	VerifiedBootState VerifiedBootState
	VerifiedBootHash  []byte
}

type rootOfTrustV1ASN1 struct {
	VerifiedBootKey   []byte
	DeviceLocked      bool
	VerifiedBootState asn1.Enumerated
}

type rootOfTrustV3ASN1 struct {
	VerifiedBootKey   []byte
	DeviceLocked      bool
	VerifiedBootState asn1.Enumerated
	VerifiedBootHash  []byte
}

// ParseRootOfTrust parses a DER encoded RootOfTrust SEQUENCE. The layout
// depends on the attestation version of the enclosing record: version 3 added
// the verified boot hash as a fourth field.
func ParseRootOfTrust(der []byte, attestationVersion int) (RootOfTrust, error) {
	var rot RootOfTrust

	if attestationVersion <= 2 {
		var parsed rootOfTrustV1ASN1
		if _, err := asn1.Unmarshal(der, &parsed); err != nil {
			return RootOfTrust{}, fmt.Errorf("unmarshaling root of trust: %w", err)
		}
		rot = RootOfTrust{
			VerifiedBootKey:   parsed.VerifiedBootKey,
			DeviceLocked:      parsed.DeviceLocked,
			VerifiedBootState: VerifiedBootState(parsed.VerifiedBootState),
		}
	} else {
		var parsed rootOfTrustV3ASN1
		if _, err := asn1.Unmarshal(der, &parsed); err != nil {
			return RootOfTrust{}, fmt.Errorf("unmarshaling root of trust: %w", err)
		}
		rot = RootOfTrust{
			VerifiedBootKey:   parsed.VerifiedBootKey,
			DeviceLocked:      parsed.DeviceLocked,
			VerifiedBootState: VerifiedBootState(parsed.VerifiedBootState),
			VerifiedBootHash:  parsed.VerifiedBootHash,
		}
	}

	if rot.VerifiedBootState < Verified || rot.VerifiedBootState > Failed {
		return RootOfTrust{}, fmt.Errorf("invalid verified boot state: %d", rot.VerifiedBootState)
	}
	return rot, nil
}

// Encode DER encodes the RootOfTrust SEQUENCE. The verified boot hash is
// included iff it is set, mirroring the version split of ParseRootOfTrust.
func (r *RootOfTrust) Encode() ([]byte, error) {
	if r.VerifiedBootHash == nil {
		return asn1.Marshal(rootOfTrustV1ASN1{
			VerifiedBootKey:   r.VerifiedBootKey,
			DeviceLocked:      r.DeviceLocked,
			VerifiedBootState: asn1.Enumerated(r.VerifiedBootState),
		})
	}
	return asn1.Marshal(rootOfTrustV3ASN1{
		VerifiedBootKey:   r.VerifiedBootKey,
		DeviceLocked:      r.DeviceLocked,
		VerifiedBootState: asn1.Enumerated(r.VerifiedBootState),
		VerifiedBootHash:  r.VerifiedBootHash,
	})
}
