package types

import (
	"encoding/asn1"
	"testing"
	"time"

	fuzzheaders "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorizationList(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	rootOfTrust := mustMarshal(t, rootOfTrustV3ASN1{
		VerifiedBootKey:   []byte{0x01, 0x02},
		DeviceLocked:      true,
		VerifiedBootState: asn1.Enumerated(Verified),
		VerifiedBootHash:  []byte{0x03, 0x04},
	})

	list := buildTestList(t,
		testEntry(t, KM_TAG_PURPOSE, mustMarshalSet(t, []int{3, 2})),
		testEntry(t, KM_TAG_ALGORITHM, mustMarshal(t, 3)),
		testEntry(t, KM_TAG_KEY_SIZE, mustMarshal(t, 256)),
		testEntry(t, KM_TAG_DIGEST, mustMarshalSet(t, []int{4})),
		testEntry(t, KM_TAG_EC_CURVE, mustMarshal(t, 1)),
		testEntry(t, KM_TAG_NO_AUTH_REQUIRED, asn1.NullBytes),
		testEntry(t, KM_TAG_USER_AUTH_TYPE, mustMarshal(t, 3)),
		testEntry(t, KM_TAG_AUTH_TIMEOUT, mustMarshal(t, 300)),
		testEntry(t, KM_TAG_CREATION_DATE_TIME, mustMarshal(t, int64(1631533200000))),
		testEntry(t, KM_TAG_ORIGIN, mustMarshal(t, 0)),
		testEntry(t, KM_TAG_ROOT_OF_TRUST, rootOfTrust),
		testEntry(t, KM_TAG_OS_VERSION, mustMarshal(t, 130000)),
		testEntry(t, KM_TAG_OS_PATCH_LEVEL, mustMarshal(t, 202309)),
		testEntry(t, KM_TAG_VENDOR_PATCH_LEVEL, mustMarshal(t, 20230905)),
		testEntry(t, KM_TAG_BOOT_PATCH_LEVEL, mustMarshal(t, 20230905)),
	)

	parsed, err := ParseAuthorizationList(list, 3)
	require.NoError(err)

	assert.Equal([]OperationPurpose{PurposeSign, PurposeVerify}, parsed.Purpose)
	require.NotNil(parsed.Algorithm)
	assert.Equal(AlgorithmEC, *parsed.Algorithm)
	require.NotNil(parsed.KeySize)
	assert.Equal(256, *parsed.KeySize)
	assert.Equal([]DigestMode{DigestSHA256}, parsed.Digest)
	require.NotNil(parsed.EcCurve)
	assert.Equal(CurveP256, *parsed.EcCurve)
	assert.True(parsed.NoAuthRequired)
	assert.Equal([]UserAuthType{UserAuthPassword, UserAuthFingerprint}, parsed.UserAuthType)
	require.NotNil(parsed.AuthTimeout)
	assert.Equal(5*time.Minute, *parsed.AuthTimeout)
	require.NotNil(parsed.CreationDateTime)
	assert.Equal(time.UnixMilli(1631533200000).UTC(), *parsed.CreationDateTime)
	require.NotNil(parsed.Origin)
	assert.Equal(OriginGenerated, *parsed.Origin)
	require.NotNil(parsed.RootOfTrust)
	assert.Equal([]byte{0x01, 0x02}, parsed.RootOfTrust.VerifiedBootKey)
	assert.True(parsed.RootOfTrust.DeviceLocked)
	assert.Equal(Verified, parsed.RootOfTrust.VerifiedBootState)
	assert.Equal([]byte{0x03, 0x04}, parsed.RootOfTrust.VerifiedBootHash)
	require.NotNil(parsed.OSVersion)
	assert.Equal(130000, *parsed.OSVersion)
	assert.False(parsed.RollbackResistance)
	assert.False(parsed.IndividualAttestation)
	assert.Nil(parsed.Padding)
	assert.Nil(parsed.RSAPublicExponent)
	assert.Empty(parsed.UnorderedTags())
}

func TestParseAuthorizationListDropsUnknownCodes(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	list := buildTestList(t,
		testEntry(t, KM_TAG_PURPOSE, mustMarshalSet(t, []int{2, 9999})),
		testEntry(t, KM_TAG_ALGORITHM, mustMarshal(t, 99)),
		testEntry(t, KM_TAG_DIGEST, mustMarshalSet(t, []int{4, 250})),
		testEntry(t, KM_TAG_PADDING, mustMarshalSet(t, []int{65})),
		testEntry(t, KM_TAG_EC_CURVE, mustMarshal(t, 77)),
		testEntry(t, KM_TAG_ORIGIN, mustMarshal(t, 42)),
	)

	parsed, err := ParseAuthorizationList(list, 4)
	require.NoError(err)

	assert.Equal([]OperationPurpose{PurposeSign}, parsed.Purpose)
	assert.Nil(parsed.Algorithm)
	assert.Equal([]DigestMode{DigestSHA256}, parsed.Digest)
	assert.Nil(parsed.Padding)
	assert.Nil(parsed.EcCurve)
	assert.Nil(parsed.Origin)
}

func TestParseAuthorizationListUnorderedTags(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	list := buildTestList(t,
		testEntry(t, KM_TAG_KEY_SIZE, mustMarshal(t, 2048)),
		testEntry(t, KM_TAG_ALGORITHM, mustMarshal(t, 1)),
		testEntry(t, KM_TAG_OS_VERSION, mustMarshal(t, 120000)),
		testEntry(t, KM_TAG_ORIGIN, mustMarshal(t, 0)),
	)

	parsed, err := ParseAuthorizationList(list, 4)
	require.NoError(err)

	assert.Equal([]int{KM_TAG_KEY_SIZE, KM_TAG_OS_VERSION}, parsed.UnorderedTags())
	require.NotNil(parsed.KeySize)
	assert.Equal(2048, *parsed.KeySize)
	require.NotNil(parsed.Algorithm)
	assert.Equal(AlgorithmRSA, *parsed.Algorithm)
}

func TestParseAuthorizationListErrors(t *testing.T) {
	testCases := map[string]struct {
		list func(t *testing.T) []byte
	}{
		"not a sequence": {
			list: func(t *testing.T) []byte { return []byte{0x02, 0x01, 0x05} },
		},
		"truncated": {
			list: func(t *testing.T) []byte { return []byte{0x30, 0x10, 0xA1} },
		},
		"wrong payload shape": {
			list: func(t *testing.T) []byte {
				return buildTestList(t, testEntry(t, KM_TAG_KEY_SIZE, mustMarshal(t, []byte("x"))))
			},
		},
		"unrecognized user auth type": {
			list: func(t *testing.T) []byte {
				return buildTestList(t, testEntry(t, KM_TAG_USER_AUTH_TYPE, mustMarshal(t, 4)))
			},
		},
		"invalid root of trust": {
			list: func(t *testing.T) []byte {
				rot := mustMarshal(t, rootOfTrustV1ASN1{
					VerifiedBootKey:   []byte{0x01},
					VerifiedBootState: asn1.Enumerated(9),
				})
				return buildTestList(t, testEntry(t, KM_TAG_ROOT_OF_TRUST, rot))
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			_, err := ParseAuthorizationList(tc.list(t), 2)
			assert.Error(err)
		})
	}
}

func TestUserAuthTypeSet(t *testing.T) {
	testCases := map[string]struct {
		value   uint64
		want    []UserAuthType
		wantErr bool
	}{
		"zero means none": {
			value: 0,
			want:  []UserAuthType{UserAuthNone},
		},
		"password": {
			value: 1,
			want:  []UserAuthType{UserAuthPassword},
		},
		"fingerprint": {
			value: 2,
			want:  []UserAuthType{UserAuthFingerprint},
		},
		"password and fingerprint": {
			value: 3,
			want:  []UserAuthType{UserAuthPassword, UserAuthFingerprint},
		},
		"any": {
			value: uint32Max,
			want:  []UserAuthType{UserAuthPassword, UserAuthFingerprint, UserAuthAny},
		},
		"unknown bit": {
			value:   4,
			wantErr: true,
		},
		"high unknown bits only": {
			value:   0x80000000,
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			got, err := userAuthTypeSet(tc.value)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.want, got)
		})
	}
}

func TestUserAuthTypeValue(t *testing.T) {
	testCases := map[string]struct {
		set     []UserAuthType
		want    uint64
		wantErr bool
	}{
		"none wins over everything": {
			set:  []UserAuthType{UserAuthPassword, UserAuthNone},
			want: 0,
		},
		"password": {
			set:  []UserAuthType{UserAuthPassword},
			want: 1,
		},
		"fingerprint": {
			set:  []UserAuthType{UserAuthFingerprint},
			want: 2,
		},
		"password and fingerprint": {
			set:  []UserAuthType{UserAuthPassword, UserAuthFingerprint},
			want: 3,
		},
		"any": {
			set:  []UserAuthType{UserAuthAny},
			want: uint32Max,
		},
		"no recognized member": {
			set:     []UserAuthType{UserAuthType(42)},
			wantErr: true,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			got, err := userAuthTypeValue(tc.set)
			if tc.wantErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.want, got)
		})
	}
}

func FuzzParseAuthorizationList(f *testing.F) {
	f.Add([]byte{0x30, 0x00}, 3)
	f.Fuzz(func(t *testing.T, data []byte, attestationVersion int) {
		assert := assert.New(t)
		assert.NotPanics(func() {
			_, _ = ParseAuthorizationList(data, attestationVersion)
		})
	})
}

// FuzzAuthorizationListEncode drives the encoder with arbitrary structured
// records. Whatever encodes must parse back.
func FuzzAuthorizationListEncode(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		require := require.New(t)

		var list AuthorizationList
		consumer := fuzzheaders.NewConsumer(data)
		if err := consumer.GenerateStruct(&list); err != nil {
			return
		}
		// The fuzzer fills the boot state with arbitrary values; only the
		// four defined states survive a reparse.
		if list.RootOfTrust != nil {
			if s := list.RootOfTrust.VerifiedBootState; s < Verified || s > Failed {
				list.RootOfTrust.VerifiedBootState = Unverified
			}
		}

		encoded, err := list.Encode()
		if err != nil {
			return
		}
		_, err = ParseAuthorizationList(encoded, 4)
		require.NoError(err)
	})
}
