package types

import (
	"fmt"
	"sort"
	"time"
)

/*
   Keymaster/KeyMint authorization tags and enum codes.
   Based on:
   https://cs.android.com/android/platform/superproject/+/master:hardware/interfaces/security/keymint/aidl/android/hardware/security/keymint/Tag.aidl
   https://github.com/google/android-key-attestation/blob/master/server/src/main/java/com/google/android/attestation/Constants.java

   The KM_TAG_* names mirror the original Keymaster constants.
*/

const (
	KM_TAG_PURPOSE                        = 1
	KM_TAG_ALGORITHM                      = 2
	KM_TAG_KEY_SIZE                       = 3
	KM_TAG_DIGEST                         = 5
	KM_TAG_PADDING                        = 6
	KM_TAG_EC_CURVE                       = 10
	KM_TAG_RSA_PUBLIC_EXPONENT            = 200
	KM_TAG_ROLLBACK_RESISTANCE            = 303
	KM_TAG_ACTIVE_DATE_TIME               = 400
	KM_TAG_ORIGINATION_EXPIRE_DATE_TIME   = 401
	KM_TAG_USAGE_EXPIRE_DATE_TIME         = 402
	KM_TAG_NO_AUTH_REQUIRED               = 503
	KM_TAG_USER_AUTH_TYPE                 = 504
	KM_TAG_AUTH_TIMEOUT                   = 505
	KM_TAG_ALLOW_WHILE_ON_BODY            = 506
	KM_TAG_TRUSTED_USER_PRESENCE_REQUIRED = 507
	KM_TAG_TRUSTED_CONFIRMATION_REQUIRED  = 508
	KM_TAG_UNLOCKED_DEVICE_REQUIRED       = 509
	KM_TAG_ALL_APPLICATIONS               = 600
	KM_TAG_APPLICATION_ID                 = 601
	KM_TAG_CREATION_DATE_TIME             = 701
	KM_TAG_ORIGIN                         = 702
	KM_TAG_ROLLBACK_RESISTANT             = 703
	KM_TAG_ROOT_OF_TRUST                  = 704
	KM_TAG_OS_VERSION                     = 705
	KM_TAG_OS_PATCH_LEVEL                 = 706
	KM_TAG_ATTESTATION_APPLICATION_ID     = 709
	KM_TAG_ATTESTATION_ID_BRAND           = 710
	KM_TAG_ATTESTATION_ID_DEVICE          = 711
	KM_TAG_ATTESTATION_ID_PRODUCT         = 712
	KM_TAG_ATTESTATION_ID_SERIAL          = 713
	KM_TAG_ATTESTATION_ID_IMEI            = 714
	KM_TAG_ATTESTATION_ID_MEID            = 715
	KM_TAG_ATTESTATION_ID_MANUFACTURER    = 716
	KM_TAG_ATTESTATION_ID_MODEL           = 717
	KM_TAG_VENDOR_PATCH_LEVEL             = 718
	KM_TAG_BOOT_PATCH_LEVEL               = 719
	KM_TAG_DEVICE_UNIQUE_ATTESTATION      = 720
	KM_TAG_IDENTITY_CREDENTIAL_KEY        = 721
	KM_TAG_ATTESTATION_ID_SECOND_IMEI     = 723
)

// uint32Max is the USER_AUTH_TYPE sentinel meaning "any authentication type".
const uint32Max = 0xFFFFFFFF

// OperationPurpose is a purpose the key may be used for (KeyPurpose.aidl).
type OperationPurpose int

const (
	PurposeEncrypt OperationPurpose = iota
	PurposeDecrypt
	PurposeSign
	PurposeVerify
	PurposeWrapKey
	PurposeAgreeKey
	PurposeAttestKey
)

var purposeToWire = map[OperationPurpose]int{
	PurposeEncrypt:   0,
	PurposeDecrypt:   1,
	PurposeSign:      2,
	PurposeVerify:    3,
	PurposeWrapKey:   5,
	PurposeAgreeKey:  6,
	PurposeAttestKey: 7,
}

var wireToPurpose = map[int]OperationPurpose{
	0: PurposeEncrypt,
	1: PurposeDecrypt,
	2: PurposeSign,
	3: PurposeVerify,
	5: PurposeWrapKey,
	6: PurposeAgreeKey,
	7: PurposeAttestKey,
}

// Algorithm is the asymmetric algorithm of the attested key pair (Algorithm.aidl).
type Algorithm int

const (
	AlgorithmRSA Algorithm = iota
	AlgorithmEC
)

var algorithmToWire = map[Algorithm]int{
	AlgorithmRSA: 1,
	AlgorithmEC:  3,
}

var wireToAlgorithm = map[int]Algorithm{
	1: AlgorithmRSA,
	3: AlgorithmEC,
}

// EcCurve is the elliptic curve of an EC key (EcCurve.aidl).
type EcCurve int

const (
	CurveP224 EcCurve = iota
	CurveP256
	CurveP384
	CurveP521
	Curve25519
)

var ecCurveToWire = map[EcCurve]int{
	CurveP224:  0,
	CurveP256:  1,
	CurveP384:  2,
	CurveP521:  3,
	Curve25519: 4,
}

var wireToEcCurve = map[int]EcCurve{
	0: CurveP224,
	1: CurveP256,
	2: CurveP384,
	3: CurveP521,
	4: Curve25519,
}

// PaddingMode is a padding mode the key may be used with (PaddingMode.aidl).
type PaddingMode int

const (
	PaddingNone PaddingMode = iota
	PaddingRSAOAEP
	PaddingRSAPSS
	PaddingRSAPKCS1Encrypt
	PaddingRSAPKCS1Sign
	PaddingPKCS7
)

var paddingToWire = map[PaddingMode]int{
	PaddingNone:            1,
	PaddingRSAOAEP:         2,
	PaddingRSAPSS:          3,
	PaddingRSAPKCS1Encrypt: 4,
	PaddingRSAPKCS1Sign:    5,
	PaddingPKCS7:           64,
}

var wireToPadding = map[int]PaddingMode{
	1:  PaddingNone,
	2:  PaddingRSAOAEP,
	3:  PaddingRSAPSS,
	4:  PaddingRSAPKCS1Encrypt,
	5:  PaddingRSAPKCS1Sign,
	64: PaddingPKCS7,
}

// DigestMode is a digest the key may be used with (Digest.aidl).
type DigestMode int

const (
	DigestNone DigestMode = iota
	DigestMD5
	DigestSHA1
	DigestSHA224
	DigestSHA256
	DigestSHA384
	DigestSHA512
)

var digestToWire = map[DigestMode]int{
	DigestNone:   0,
	DigestMD5:    1,
	DigestSHA1:   2,
	DigestSHA224: 3,
	DigestSHA256: 4,
	DigestSHA384: 5,
	DigestSHA512: 6,
}

var wireToDigest = map[int]DigestMode{
	0: DigestNone,
	1: DigestMD5,
	2: DigestSHA1,
	3: DigestSHA224,
	4: DigestSHA256,
	5: DigestSHA384,
	6: DigestSHA512,
}

// KeyOrigin describes where the key material came from (KeyOrigin.aidl).
type KeyOrigin int

const (
	OriginGenerated KeyOrigin = iota
	OriginDerived
	OriginImported
	OriginReserved
	OriginSecurelyImported
)

var keyOriginToWire = map[KeyOrigin]int{
	OriginGenerated:        0,
	OriginImported:         1,
	OriginDerived:          2,
	OriginReserved:         3,
	OriginSecurelyImported: 4,
}

var wireToKeyOrigin = map[int]KeyOrigin{
	0: OriginGenerated,
	1: OriginImported,
	2: OriginDerived,
	3: OriginReserved,
	4: OriginSecurelyImported,
}

// UserAuthType is a type of user authenticator that may authorize the key.
// On the wire the set is a single integer with PASSWORD and FINGERPRINT as
// bit flags and two reserved sentinels: 0 means "no authentication type" and
// the unsigned 32-bit maximum means "any authentication type".
type UserAuthType int

const (
	UserAuthNone UserAuthType = iota
	UserAuthPassword
	UserAuthFingerprint
	UserAuthAny
)

// AuthorizationList is the set of authorizations a Keymaster/KeyMint
// implementation asserts about a key pair. Every field is independently
// optional: pointer and slice fields are nil when the corresponding tag is
// absent, bool fields are presence markers. Compare these values against
// expected state to decide whether a key pair is trustworthy.
//
// A zero AuthorizationList is valid and encodes to an empty sequence, so
// caller-assembled records are built with a plain struct literal.
type AuthorizationList struct {
	Purpose                     []OperationPurpose
	Algorithm                   *Algorithm
	KeySize                     *int
	Digest                      []DigestMode
	Padding                     []PaddingMode
	EcCurve                     *EcCurve
	RSAPublicExponent           *int64
	RollbackResistance          bool
	ActiveDateTime              *time.Time
	OriginationExpireDateTime   *time.Time
	UsageExpireDateTime         *time.Time
	NoAuthRequired              bool
	UserAuthType                []UserAuthType
	AuthTimeout                 *time.Duration
	AllowWhileOnBody            bool
	TrustedUserPresenceRequired bool
	TrustedConfirmationRequired bool
	UnlockedDeviceRequired      bool
	AllApplications             bool
	ApplicationID               []byte
	CreationDateTime            *time.Time
	Origin                      *KeyOrigin
	RollbackResistant           bool
	RootOfTrust                 *RootOfTrust
	OSVersion                   *int
	OSPatchLevel                *int

	// AttestationApplicationID is the decoded sub-record;
	// AttestationApplicationIDBytes keeps the raw octets so the field can
	// still be re-encoded when the structured form is missing or its
	// encoder fails.
	AttestationApplicationID      *AttestationApplicationID
	AttestationApplicationIDBytes []byte

	AttestationIDBrand        []byte
	AttestationIDDevice       []byte
	AttestationIDProduct      []byte
	AttestationIDSerial       []byte
	AttestationIDIMEI         []byte
	AttestationIDSecondIMEI   []byte
	AttestationIDMEID         []byte
	AttestationIDManufacturer []byte
	AttestationIDModel        []byte

	VendorPatchLevel      *int
	BootPatchLevel        *int
	IndividualAttestation bool
	IdentityCredentialKey bool

	unorderedTags []int
}

// UnorderedTags returns the tags whose position in the decoded sequence
// violated ascending order, in the order the violations occurred. An empty
// result means the record was well ordered. The list is diagnostic only and
// never causes a decode failure by itself.
func (l *AuthorizationList) UnorderedTags() []int {
	return l.unorderedTags
}

// ParseAuthorizationList parses a DER encoded AuthorizationList SEQUENCE.
// The attestation version selects the layout of the nested root of trust
// sub-record; it is carried in the enclosing KeyDescription, not in the list
// itself, so the caller supplies it.
//
// Parsing either returns a complete record or fails with a specific reason;
// it never silently drops a present field. The only leniency is for enum
// codes with no known mapping, which are skipped for forward compatibility
// with future hardware feature flags.
func ParseAuthorizationList(rawList []byte, attestationVersion int) (AuthorizationList, error) {
	entries, err := parseTaggedValues(rawList)
	if err != nil {
		return AuthorizationList{}, err
	}
	return buildAuthorizationList(newTaggedMap(entries), attestationVersion)
}

func buildAuthorizationList(m taggedMap, attestationVersion int) (AuthorizationList, error) {
	list := AuthorizationList{unorderedTags: m.unorderedTags}

	purposeCodes, err := m.intSet(KM_TAG_PURPOSE)
	if err != nil {
		return AuthorizationList{}, err
	}
	list.Purpose = purposesFromWire(purposeCodes)

	algorithmCode, err := m.optionalInt(KM_TAG_ALGORITHM)
	if err != nil {
		return AuthorizationList{}, err
	}
	if algorithmCode != nil {
		if algorithm, ok := wireToAlgorithm[*algorithmCode]; ok {
			list.Algorithm = &algorithm
		}
	}

	if list.KeySize, err = m.optionalInt(KM_TAG_KEY_SIZE); err != nil {
		return AuthorizationList{}, err
	}

	digestCodes, err := m.intSet(KM_TAG_DIGEST)
	if err != nil {
		return AuthorizationList{}, err
	}
	list.Digest = digestsFromWire(digestCodes)

	paddingCodes, err := m.intSet(KM_TAG_PADDING)
	if err != nil {
		return AuthorizationList{}, err
	}
	list.Padding = paddingsFromWire(paddingCodes)

	curveCode, err := m.optionalInt(KM_TAG_EC_CURVE)
	if err != nil {
		return AuthorizationList{}, err
	}
	if curveCode != nil {
		if curve, ok := wireToEcCurve[*curveCode]; ok {
			list.EcCurve = &curve
		}
	}

	if list.RSAPublicExponent, err = m.optionalInt64(KM_TAG_RSA_PUBLIC_EXPONENT); err != nil {
		return AuthorizationList{}, err
	}
	list.RollbackResistance = m.present(KM_TAG_ROLLBACK_RESISTANCE)
	if list.ActiveDateTime, err = m.optionalTimeMillis(KM_TAG_ACTIVE_DATE_TIME); err != nil {
		return AuthorizationList{}, err
	}
	if list.OriginationExpireDateTime, err = m.optionalTimeMillis(KM_TAG_ORIGINATION_EXPIRE_DATE_TIME); err != nil {
		return AuthorizationList{}, err
	}
	if list.UsageExpireDateTime, err = m.optionalTimeMillis(KM_TAG_USAGE_EXPIRE_DATE_TIME); err != nil {
		return AuthorizationList{}, err
	}
	list.NoAuthRequired = m.present(KM_TAG_NO_AUTH_REQUIRED)

	authTypeValue, err := m.optionalInt64(KM_TAG_USER_AUTH_TYPE)
	if err != nil {
		return AuthorizationList{}, err
	}
	if authTypeValue != nil {
		if list.UserAuthType, err = userAuthTypeSet(uint64(*authTypeValue)); err != nil {
			return AuthorizationList{}, err
		}
	}

	if list.AuthTimeout, err = m.optionalDurationSeconds(KM_TAG_AUTH_TIMEOUT); err != nil {
		return AuthorizationList{}, err
	}
	list.AllowWhileOnBody = m.present(KM_TAG_ALLOW_WHILE_ON_BODY)
	list.TrustedUserPresenceRequired = m.present(KM_TAG_TRUSTED_USER_PRESENCE_REQUIRED)
	list.TrustedConfirmationRequired = m.present(KM_TAG_TRUSTED_CONFIRMATION_REQUIRED)
	list.UnlockedDeviceRequired = m.present(KM_TAG_UNLOCKED_DEVICE_REQUIRED)
	list.AllApplications = m.present(KM_TAG_ALL_APPLICATIONS)
	if list.ApplicationID, err = m.optionalBytes(KM_TAG_APPLICATION_ID); err != nil {
		return AuthorizationList{}, err
	}
	if list.CreationDateTime, err = m.optionalTimeMillis(KM_TAG_CREATION_DATE_TIME); err != nil {
		return AuthorizationList{}, err
	}

	originCode, err := m.optionalInt(KM_TAG_ORIGIN)
	if err != nil {
		return AuthorizationList{}, err
	}
	if originCode != nil {
		if origin, ok := wireToKeyOrigin[*originCode]; ok {
			list.Origin = &origin
		}
	}

	list.RollbackResistant = m.present(KM_TAG_ROLLBACK_RESISTANT)

	rootOfTrustDER, err := m.nested(KM_TAG_ROOT_OF_TRUST)
	if err != nil {
		return AuthorizationList{}, err
	}
	if rootOfTrustDER != nil {
		rootOfTrust, err := ParseRootOfTrust(rootOfTrustDER, attestationVersion)
		if err != nil {
			return AuthorizationList{}, fmt.Errorf("parsing root of trust: %w", err)
		}
		list.RootOfTrust = &rootOfTrust
	}

	if list.OSVersion, err = m.optionalInt(KM_TAG_OS_VERSION); err != nil {
		return AuthorizationList{}, err
	}
	if list.OSPatchLevel, err = m.optionalInt(KM_TAG_OS_PATCH_LEVEL); err != nil {
		return AuthorizationList{}, err
	}

	if list.AttestationApplicationIDBytes, err = m.optionalBytes(KM_TAG_ATTESTATION_APPLICATION_ID); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationApplicationIDBytes != nil {
		// The structured form is best effort: if the octets don't decode,
		// the raw bytes remain available and encoding falls back to them.
		if appID, err := ParseAttestationApplicationID(list.AttestationApplicationIDBytes); err == nil {
			list.AttestationApplicationID = &appID
		}
	}

	if list.AttestationIDBrand, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_BRAND); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDDevice, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_DEVICE); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDProduct, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_PRODUCT); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDSerial, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_SERIAL); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDIMEI, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_IMEI); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDSecondIMEI, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_SECOND_IMEI); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDMEID, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_MEID); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDManufacturer, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_MANUFACTURER); err != nil {
		return AuthorizationList{}, err
	}
	if list.AttestationIDModel, err = m.optionalBytes(KM_TAG_ATTESTATION_ID_MODEL); err != nil {
		return AuthorizationList{}, err
	}

	if list.VendorPatchLevel, err = m.optionalInt(KM_TAG_VENDOR_PATCH_LEVEL); err != nil {
		return AuthorizationList{}, err
	}
	if list.BootPatchLevel, err = m.optionalInt(KM_TAG_BOOT_PATCH_LEVEL); err != nil {
		return AuthorizationList{}, err
	}
	list.IndividualAttestation = m.present(KM_TAG_DEVICE_UNIQUE_ATTESTATION)
	list.IdentityCredentialKey = m.present(KM_TAG_IDENTITY_CREDENTIAL_KEY)

	return list, nil
}

// userAuthTypeSet decodes the USER_AUTH_TYPE wire value into a set of
// authenticator types. Unlike the enum tables, the bit layout is closed:
// a nonzero value that matches neither a known bit nor the "any" sentinel is
// a decode error, because the security meaning of the field would be undefined.
func userAuthTypeSet(value uint64) ([]UserAuthType, error) {
	if value == 0 {
		return []UserAuthType{UserAuthNone}, nil
	}

	var set []UserAuthType
	if value&1 != 0 {
		set = append(set, UserAuthPassword)
	}
	if value&2 != 0 {
		set = append(set, UserAuthFingerprint)
	}
	if value == uint32Max {
		set = append(set, UserAuthAny)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("invalid user authentication type: %#x", value)
	}
	return set, nil
}

// userAuthTypeValue is the inverse of userAuthTypeSet.
func userAuthTypeValue(set []UserAuthType) (uint64, error) {
	for _, authType := range set {
		if authType == UserAuthNone {
			return 0, nil
		}
	}

	var value uint64
	for _, authType := range set {
		switch authType {
		case UserAuthPassword:
			value |= 1
		case UserAuthFingerprint:
			value |= 2
		case UserAuthAny:
			value |= uint32Max
		}
	}

	if value == 0 {
		return 0, fmt.Errorf("invalid user authentication type set: %v", set)
	}
	return value, nil
}

// The *FromWire functions map wire codes to enum values, dropping codes with
// no known mapping. Results are in ascending wire-code order so that decoding
// is deterministic regardless of the order inside the DER SET.

func purposesFromWire(codes []int) []OperationPurpose {
	sort.Ints(codes)
	var purposes []OperationPurpose
	for _, code := range codes {
		if purpose, ok := wireToPurpose[code]; ok {
			purposes = append(purposes, purpose)
		}
	}
	return purposes
}

func digestsFromWire(codes []int) []DigestMode {
	sort.Ints(codes)
	var digests []DigestMode
	for _, code := range codes {
		if digest, ok := wireToDigest[code]; ok {
			digests = append(digests, digest)
		}
	}
	return digests
}

func paddingsFromWire(codes []int) []PaddingMode {
	sort.Ints(codes)
	var paddings []PaddingMode
	for _, code := range codes {
		if padding, ok := wireToPadding[code]; ok {
			paddings = append(paddings, padding)
		}
	}
	return paddings
}
