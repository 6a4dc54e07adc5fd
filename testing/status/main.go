package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/teeverify/android-keyattest/verification/status"
)

func main() {
	if err := statusConnection(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func statusConnection() error {
	if len(os.Args) < 2 {
		return errors.New("usage: status <serial-number-hex>")
	}

	serial, ok := new(big.Int).SetString(os.Args[1], 16)
	if !ok {
		return fmt.Errorf("invalid serial number: %s", os.Args[1])
	}

	client := status.New()
	entry, err := client.GetEntry(context.Background(), serial)
	if err != nil {
		return err
	}

	if entry == nil {
		fmt.Printf("Serial %x is not on the attestation status list\n", serial)
		return nil
	}
	fmt.Printf("Serial %x is listed:\n%+v\n", serial, entry)
	return nil
}
