package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/teeverify/android-keyattest/verification"
	"github.com/teeverify/android-keyattest/verification/crypto"
)

func main() {
	if err := testVerify(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func testVerify() error {
	if len(os.Args) < 3 {
		return errors.New("usage: verify <root-cert.pem> <cert-chain.pem>")
	}

	rootPEM, err := os.ReadFile(os.Args[1])
	if err != nil {
		return err
	}
	chainPEM, err := os.ReadFile(os.Args[2])
	if err != nil {
		return err
	}

	verifier := verification.New(crypto.MustParsePEMCertificate(rootPEM))
	keyDescription, err := verifier.Verify(context.Background(), chainPEM)
	if err != nil {
		return err
	}

	fmt.Println("Successfully verified attestation certificate chain")
	fmt.Printf("Key description:\n%+v\n", keyDescription)
	return nil
}
