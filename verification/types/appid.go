package types

import (
	"encoding/asn1"
	"fmt"
)

// PackageInfo names one Android package the attested key belongs to.
type PackageInfo struct {
	PackageName string
	Version     int64
}

// AttestationApplicationID identifies the set of applications that may use the
// key: their package names and versions, and the SHA-256 digests of their
// signing certificates.
type AttestationApplicationID struct {
	PackageInfos     []PackageInfo
	SignatureDigests [][]byte
}

type attestationPackageInfoASN1 struct {
	PackageName []byte
	Version     int64
}

type attestationApplicationIDASN1 struct {
	PackageInfos     []attestationPackageInfoASN1 `asn1:"set"`
	SignatureDigests [][]byte                     `asn1:"set"`
}

// ParseAttestationApplicationID parses the DER encoded
// AttestationApplicationId SEQUENCE carried inside the octets of
// authorization tag 709.
func ParseAttestationApplicationID(der []byte) (AttestationApplicationID, error) {
	var parsed attestationApplicationIDASN1
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		return AttestationApplicationID{}, fmt.Errorf("unmarshaling attestation application id: %w", err)
	}

	appID := AttestationApplicationID{SignatureDigests: parsed.SignatureDigests}
	for _, info := range parsed.PackageInfos {
		appID.PackageInfos = append(appID.PackageInfos, PackageInfo{
			PackageName: string(info.PackageName),
			Version:     info.Version,
		})
	}
	return appID, nil
}

// Encode DER encodes the AttestationApplicationId SEQUENCE.
func (a *AttestationApplicationID) Encode() ([]byte, error) {
	encodable := attestationApplicationIDASN1{SignatureDigests: a.SignatureDigests}
	for _, info := range a.PackageInfos {
		encodable.PackageInfos = append(encodable.PackageInfos, attestationPackageInfoASN1{
			PackageName: []byte(info.PackageName),
			Version:     info.Version,
		})
	}
	return asn1.Marshal(encodable)
}
