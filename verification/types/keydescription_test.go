package types

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	fuzzheaders "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDescriptionRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	algorithm := AlgorithmEC
	osVersion := 140000

	description := KeyDescription{
		AttestationVersion:       4,
		AttestationSecurityLevel: TrustedEnvironment,
		KeymasterVersion:         41,
		KeymasterSecurityLevel:   StrongBox,
		AttestationChallenge:     []byte("challenge"),
		UniqueID:                 []byte{},
		SoftwareEnforced: AuthorizationList{
			Purpose:   []OperationPurpose{PurposeSign},
			OSVersion: &osVersion,
		},
		TEEEnforced: AuthorizationList{
			Algorithm:      &algorithm,
			NoAuthRequired: true,
			RootOfTrust: &RootOfTrust{
				VerifiedBootKey:   []byte{0x01, 0x02},
				DeviceLocked:      true,
				VerifiedBootState: Verified,
				VerifiedBootHash:  []byte{0x03, 0x04},
			},
		},
	}

	encoded, err := description.Encode()
	require.NoError(err)

	parsed, err := ParseKeyDescription(encoded)
	require.NoError(err)
	assert.Equal(description, parsed)
}

func TestParseKeyDescriptionErrors(t *testing.T) {
	testCases := map[string]struct {
		der func(t *testing.T) []byte
	}{
		"not a sequence": {
			der: func(t *testing.T) []byte { return []byte{0x02, 0x01, 0x04} },
		},
		"invalid attestation security level": {
			der: func(t *testing.T) []byte {
				description := KeyDescription{AttestationVersion: 4, AttestationSecurityLevel: SecurityLevel(7)}
				encoded, err := description.Encode()
				require.NoError(t, err)
				return encoded
			},
		},
		"invalid keymaster security level": {
			der: func(t *testing.T) []byte {
				description := KeyDescription{AttestationVersion: 4, KeymasterSecurityLevel: SecurityLevel(7)}
				encoded, err := description.Encode()
				require.NoError(t, err)
				return encoded
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			_, err := ParseKeyDescription(tc.der(t))
			assert.Error(err)
		})
	}
}

func TestParseAttestationExtension(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	description := KeyDescription{
		AttestationVersion:       3,
		AttestationSecurityLevel: TrustedEnvironment,
		KeymasterVersion:         4,
		KeymasterSecurityLevel:   TrustedEnvironment,
		AttestationChallenge:     []byte("abc"),
		UniqueID:                 []byte{},
	}
	cert := attestationCert(t, &description)

	parsed, err := ParseAttestationExtension(cert)
	require.NoError(err)
	assert.Equal(description, parsed)

	_, err = ParseAttestationExtension(attestationCert(t, nil))
	assert.Error(err)
}

// attestationCert self-signs a certificate, carrying the encoded description
// as the key attestation extension if one is given.
func attestationCert(t *testing.T, description *KeyDescription) *x509.Certificate {
	t.Helper()
	require := require.New(t)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Android Keystore Key"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	if description != nil {
		encoded, err := description.Encode()
		require.NoError(err)
		template.ExtraExtensions = []pkix.Extension{{Id: KeyAttestationExtensionOID, Value: encoded}}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(err)
	return cert
}

func FuzzParseKeyDescription(f *testing.F) {
	f.Add([]byte{0x30, 0x00})
	f.Fuzz(func(t *testing.T, data []byte) {
		assert := assert.New(t)
		assert.NotPanics(func() {
			_, _ = ParseKeyDescription(data)
		})
	})
}

func FuzzKeyDescriptionEncode(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		var description KeyDescription
		consumer := fuzzheaders.NewConsumer(data)
		if err := consumer.GenerateStruct(&description); err != nil {
			return
		}

		assert := assert.New(t)
		assert.NotPanics(func() {
			if encoded, err := description.Encode(); err == nil {
				_, _ = ParseKeyDescription(encoded)
			}
		})
	})
}
