package types

import (
	"encoding/asn1"
	"fmt"
	"sort"
	"time"
)

// Encode DER encodes the AuthorizationList SEQUENCE. Fields are emitted in
// ascending tag order regardless of how the list was obtained, so a decoded
// record with unordered tags re-encodes canonically. Absent optional fields,
// false presence booleans and empty sets are omitted entirely.
func (l *AuthorizationList) Encode() ([]byte, error) {
	e := &authorizationEncoder{}

	purposeCodes, err := purposesToWire(l.Purpose)
	if err != nil {
		return nil, err
	}
	e.addIntSet(KM_TAG_PURPOSE, purposeCodes)
	if l.Algorithm != nil {
		code, ok := algorithmToWire[*l.Algorithm]
		if !ok {
			return nil, fmt.Errorf("unknown algorithm: %d", *l.Algorithm)
		}
		e.addInt(KM_TAG_ALGORITHM, code)
	}
	e.addOptionalInt(KM_TAG_KEY_SIZE, l.KeySize)

	digestCodes, err := digestsToWire(l.Digest)
	if err != nil {
		return nil, err
	}
	e.addIntSet(KM_TAG_DIGEST, digestCodes)

	paddingCodes, err := paddingsToWire(l.Padding)
	if err != nil {
		return nil, err
	}
	e.addIntSet(KM_TAG_PADDING, paddingCodes)

	if l.EcCurve != nil {
		code, ok := ecCurveToWire[*l.EcCurve]
		if !ok {
			return nil, fmt.Errorf("unknown ec curve: %d", *l.EcCurve)
		}
		e.addInt(KM_TAG_EC_CURVE, code)
	}
	e.addOptionalInt64(KM_TAG_RSA_PUBLIC_EXPONENT, l.RSAPublicExponent)
	e.addPresence(KM_TAG_ROLLBACK_RESISTANCE, l.RollbackResistance)
	e.addOptionalTimeMillis(KM_TAG_ACTIVE_DATE_TIME, l.ActiveDateTime)
	e.addOptionalTimeMillis(KM_TAG_ORIGINATION_EXPIRE_DATE_TIME, l.OriginationExpireDateTime)
	e.addOptionalTimeMillis(KM_TAG_USAGE_EXPIRE_DATE_TIME, l.UsageExpireDateTime)
	e.addPresence(KM_TAG_NO_AUTH_REQUIRED, l.NoAuthRequired)

	if len(l.UserAuthType) != 0 {
		value, err := userAuthTypeValue(l.UserAuthType)
		if err != nil {
			return nil, err
		}
		e.addInt64(KM_TAG_USER_AUTH_TYPE, int64(value))
	}

	if l.AuthTimeout != nil {
		e.addInt64(KM_TAG_AUTH_TIMEOUT, int64(l.AuthTimeout.Seconds()))
	}
	e.addPresence(KM_TAG_ALLOW_WHILE_ON_BODY, l.AllowWhileOnBody)
	e.addPresence(KM_TAG_TRUSTED_USER_PRESENCE_REQUIRED, l.TrustedUserPresenceRequired)
	e.addPresence(KM_TAG_TRUSTED_CONFIRMATION_REQUIRED, l.TrustedConfirmationRequired)
	e.addPresence(KM_TAG_UNLOCKED_DEVICE_REQUIRED, l.UnlockedDeviceRequired)
	e.addPresence(KM_TAG_ALL_APPLICATIONS, l.AllApplications)
	e.addOptionalBytes(KM_TAG_APPLICATION_ID, l.ApplicationID)
	e.addOptionalTimeMillis(KM_TAG_CREATION_DATE_TIME, l.CreationDateTime)

	if l.Origin != nil {
		code, ok := keyOriginToWire[*l.Origin]
		if !ok {
			return nil, fmt.Errorf("unknown key origin: %d", *l.Origin)
		}
		e.addInt(KM_TAG_ORIGIN, code)
	}
	e.addPresence(KM_TAG_ROLLBACK_RESISTANT, l.RollbackResistant)

	if l.RootOfTrust != nil {
		rootOfTrust, err := l.RootOfTrust.Encode()
		if err != nil {
			return nil, fmt.Errorf("encoding root of trust: %w", err)
		}
		e.addRaw(KM_TAG_ROOT_OF_TRUST, rootOfTrust)
	}

	e.addOptionalInt(KM_TAG_OS_VERSION, l.OSVersion)
	e.addOptionalInt(KM_TAG_OS_PATCH_LEVEL, l.OSPatchLevel)
	e.addOptionalBytes(KM_TAG_ATTESTATION_APPLICATION_ID, l.attestationApplicationIDOctets())
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_BRAND, l.AttestationIDBrand)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_DEVICE, l.AttestationIDDevice)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_PRODUCT, l.AttestationIDProduct)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_SERIAL, l.AttestationIDSerial)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_IMEI, l.AttestationIDIMEI)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_MEID, l.AttestationIDMEID)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_MANUFACTURER, l.AttestationIDManufacturer)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_MODEL, l.AttestationIDModel)
	e.addOptionalInt(KM_TAG_VENDOR_PATCH_LEVEL, l.VendorPatchLevel)
	e.addOptionalInt(KM_TAG_BOOT_PATCH_LEVEL, l.BootPatchLevel)
	e.addPresence(KM_TAG_DEVICE_UNIQUE_ATTESTATION, l.IndividualAttestation)
	e.addPresence(KM_TAG_IDENTITY_CREDENTIAL_KEY, l.IdentityCredentialKey)
	e.addOptionalBytes(KM_TAG_ATTESTATION_ID_SECOND_IMEI, l.AttestationIDSecondIMEI)

	return e.sequence()
}

// attestationApplicationIDOctets returns the octets to emit for tag 709: the
// structured record if it is set and encodes, falling back to the raw bytes
// kept from decoding. A record that decoded with raw bytes only is never
// silently dropped on re-encode.
func (l *AuthorizationList) attestationApplicationIDOctets() []byte {
	if l.AttestationApplicationID != nil {
		if encoded, err := l.AttestationApplicationID.Encode(); err == nil {
			return encoded
		}
	}
	return l.AttestationApplicationIDBytes
}

// authorizationEncoder accumulates explicitly tagged authorization entries.
// Entries must be added in ascending tag order. The first marshaling error
// sticks and surfaces from sequence().
type authorizationEncoder struct {
	entries []byte
	err     error
}

// addRaw wraps an already DER encoded payload in an explicit context tag and
// appends it.
func (e *authorizationEncoder) addRaw(tag int, payload []byte) {
	if e.err != nil {
		return
	}
	entry, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        tag,
		IsCompound: true,
		Bytes:      payload,
	})
	if err != nil {
		e.err = fmt.Errorf("encoding authorization tag %d: %w", tag, err)
		return
	}
	e.entries = append(e.entries, entry...)
}

func (e *authorizationEncoder) addInt(tag, value int) {
	if e.err != nil {
		return
	}
	payload, err := asn1.Marshal(value)
	if err != nil {
		e.err = fmt.Errorf("encoding authorization tag %d: %w", tag, err)
		return
	}
	e.addRaw(tag, payload)
}

func (e *authorizationEncoder) addInt64(tag int, value int64) {
	if e.err != nil {
		return
	}
	payload, err := asn1.Marshal(value)
	if err != nil {
		e.err = fmt.Errorf("encoding authorization tag %d: %w", tag, err)
		return
	}
	e.addRaw(tag, payload)
}

func (e *authorizationEncoder) addOptionalInt(tag int, value *int) {
	if value == nil {
		return
	}
	e.addInt(tag, *value)
}

func (e *authorizationEncoder) addOptionalInt64(tag int, value *int64) {
	if value == nil {
		return
	}
	e.addInt64(tag, *value)
}

func (e *authorizationEncoder) addOptionalTimeMillis(tag int, value *time.Time) {
	if value == nil {
		return
	}
	e.addInt64(tag, value.UnixMilli())
}

// addPresence emits a NULL payload for the tag iff present is true.
func (e *authorizationEncoder) addPresence(tag int, present bool) {
	if !present {
		return
	}
	e.addRaw(tag, asn1.NullBytes)
}

func (e *authorizationEncoder) addOptionalBytes(tag int, value []byte) {
	if e.err != nil || value == nil {
		return
	}
	payload, err := asn1.Marshal(value)
	if err != nil {
		e.err = fmt.Errorf("encoding authorization tag %d: %w", tag, err)
		return
	}
	e.addRaw(tag, payload)
}

// addIntSet emits a SET OF INTEGER payload in ascending order. Empty sets are
// omitted.
func (e *authorizationEncoder) addIntSet(tag int, codes []int) {
	if e.err != nil || len(codes) == 0 {
		return
	}
	sort.Ints(codes)
	payload, err := asn1.MarshalWithParams(codes, "set")
	if err != nil {
		e.err = fmt.Errorf("encoding authorization tag %d: %w", tag, err)
		return
	}
	e.addRaw(tag, payload)
}

// sequence wraps the accumulated entries in the outer SEQUENCE.
func (e *authorizationEncoder) sequence() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSequence,
		IsCompound: true,
		Bytes:      e.entries,
	})
}

// The *ToWire functions map enum values to wire codes. Unlike decoding, an
// unknown value here is a programming error, not a forward compatibility
// concern, and fails the encode.

func purposesToWire(purposes []OperationPurpose) ([]int, error) {
	var codes []int
	for _, purpose := range purposes {
		code, ok := purposeToWire[purpose]
		if !ok {
			return nil, fmt.Errorf("unknown purpose: %d", purpose)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func digestsToWire(digests []DigestMode) ([]int, error) {
	var codes []int
	for _, digest := range digests {
		code, ok := digestToWire[digest]
		if !ok {
			return nil, fmt.Errorf("unknown digest: %d", digest)
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func paddingsToWire(paddings []PaddingMode) ([]int, error) {
	var codes []int
	for _, padding := range paddings {
		code, ok := paddingToWire[padding]
		if !ok {
			return nil, fmt.Errorf("unknown padding mode: %d", padding)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
