// Command generate creates a self-signed certificate carrying a sample key
// attestation extension, for exercising parseRecord and the parsers.
package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/teeverify/android-keyattest/verification/types"
)

func main() {
	if err := generateCert(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func generateCert() error {
	algorithm := types.AlgorithmEC
	keySize := 256
	curve := types.CurveP256
	origin := types.OriginGenerated
	creation := time.Now().UTC().Truncate(time.Millisecond)

	keyDescription := types.KeyDescription{
		AttestationVersion:       4,
		AttestationSecurityLevel: types.TrustedEnvironment,
		KeymasterVersion:         41,
		KeymasterSecurityLevel:   types.TrustedEnvironment,
		AttestationChallenge:     []byte("Hello from the secure element!"),
		SoftwareEnforced: types.AuthorizationList{
			CreationDateTime: &creation,
			AttestationApplicationID: &types.AttestationApplicationID{
				PackageInfos:     []types.PackageInfo{{PackageName: "com.example.attested", Version: 1}},
				SignatureDigests: [][]byte{make([]byte, 32)},
			},
		},
		TEEEnforced: types.AuthorizationList{
			Purpose:        []types.OperationPurpose{types.PurposeSign, types.PurposeVerify},
			Algorithm:      &algorithm,
			KeySize:        &keySize,
			Digest:         []types.DigestMode{types.DigestSHA256},
			EcCurve:        &curve,
			NoAuthRequired: true,
			Origin:         &origin,
			RootOfTrust: &types.RootOfTrust{
				VerifiedBootKey:   make([]byte, 32),
				DeviceLocked:      true,
				VerifiedBootState: types.Verified,
				VerifiedBootHash:  make([]byte, 32),
			},
		},
	}

	extension, err := keyDescription.Encode()
	if err != nil {
		return err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	template := &x509.Certificate{
		SerialNumber:    big.NewInt(1),
		Subject:         pkix.Name{CommonName: "Android Keystore Key"},
		NotBefore:       time.Now(),
		NotAfter:        time.Now().AddDate(1, 0, 0),
		ExtraExtensions: []pkix.Extension{{Id: types.KeyAttestationExtensionOID, Value: extension}},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile("attestation-cert.pem", certPEM, 0o644); err != nil {
		return err
	}
	log.Println("Successfully written attestation-cert.pem")

	return nil
}
