package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/teeverify/android-keyattest/verification/crypto"
	"github.com/teeverify/android-keyattest/verification/types"
)

func main() {
	if err := parseRecord(); err != nil {
		panic(err)
	}
}

func parseRecord() error {
	if len(os.Args) < 2 {
		return errors.New("usage: parseRecord <attestation-cert.pem>")
	}

	certPEM, err := os.ReadFile(os.Args[1])
	if err != nil {
		return err
	}

	keyDescription, err := types.ParseAttestationExtension(crypto.MustParsePEMCertificate(certPEM))
	if err != nil {
		return err
	}

	prettyPrint, err := json.MarshalIndent(keyDescription, "", " ")
	if err != nil {
		return err
	}

	fmt.Println(string(prettyPrint))

	return nil
}
