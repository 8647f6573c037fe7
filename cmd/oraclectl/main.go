// Package main implements oraclectl, the operator-side companion tool for
// the oraclemarket server.  It produces and checks resolution attestations
// without the private key ever touching the server:
//
//	oraclectl address                          derive the oracle address
//	oraclectl sign   -market 7 -outcome A      sign an attestation
//	oraclectl verify -market 7 -outcome A -sig 0x… -oracle 0x…
//
// The private key is read from ORACLE_PRIVATE_KEY (hex, with or without the
// 0x prefix) and is required by `address` and `sign` only.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/oracle"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "address":
		err = cmdAddress()
	case "sign":
		err = cmdSign(os.Args[2:])
	case "verify":
		err = cmdVerify(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "oraclectl: unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "oraclectl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: oraclectl <command> [flags]

commands:
  address                             print the oracle address for ORACLE_PRIVATE_KEY
  sign    -market N -outcome A|B      sign a resolution attestation
  verify  -market N -outcome A|B -sig 0x… -oracle 0x…
                                      check an attestation against an oracle address
`)
}

// ──────────────────────────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────────────────────────

func cmdAddress() error {
	attestor, err := loadAttestor()
	if err != nil {
		return err
	}
	fmt.Println(attestor.Address().Hex())
	return nil
}

func cmdSign(args []string) error {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	marketID := fs.Int64("market", 0, "market id to attest")
	outcomeStr := fs.String("outcome", "", "winning outcome: A or B")
	_ = fs.Parse(args)

	outcome, err := parseArgs(*marketID, *outcomeStr)
	if err != nil {
		return err
	}

	attestor, err := loadAttestor()
	if err != nil {
		return err
	}

	sigHex, err := attestor.SignHex(*marketID, outcome)
	if err != nil {
		return err
	}

	fmt.Printf("oracle:    %s\n", attestor.Address().Hex())
	fmt.Printf("market:    %d\n", *marketID)
	fmt.Printf("outcome:   %s\n", outcome)
	fmt.Printf("signature: %s\n", sigHex)
	return nil
}

func cmdVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	marketID := fs.Int64("market", 0, "market id the attestation is for")
	outcomeStr := fs.String("outcome", "", "attested outcome: A or B")
	sigHex := fs.String("sig", "", "0x-prefixed 65-byte signature")
	oracleHex := fs.String("oracle", "", "expected oracle address")
	_ = fs.Parse(args)

	outcome, err := parseArgs(*marketID, *outcomeStr)
	if err != nil {
		return err
	}
	if *sigHex == "" {
		return fmt.Errorf("-sig is required")
	}
	if !common.IsHexAddress(*oracleHex) {
		return fmt.Errorf("-oracle %q is not a valid address", *oracleHex)
	}

	verifier := oracle.NewVerifier(common.HexToAddress(*oracleHex))
	if !verifier.VerifyHex(*marketID, outcome, *sigHex) {
		return fmt.Errorf("signature is NOT a valid attestation for market %d outcome %s by %s",
			*marketID, outcome, verifier.Signer().Hex())
	}

	fmt.Printf("valid attestation: market %d, outcome %s, oracle %s\n",
		*marketID, outcome, verifier.Signer().Hex())
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func loadAttestor() (*oracle.Attestor, error) {
	keyHex := os.Getenv("ORACLE_PRIVATE_KEY")
	if keyHex == "" {
		return nil, fmt.Errorf("ORACLE_PRIVATE_KEY must be set")
	}
	return oracle.NewAttestor(keyHex)
}

func parseArgs(marketID int64, outcomeStr string) (domain.Outcome, error) {
	if marketID < 1 {
		return 0, fmt.Errorf("-market must be a positive id")
	}
	outcome, err := domain.ParseOutcome(outcomeStr)
	if err != nil {
		return 0, fmt.Errorf("-outcome must be A or B")
	}
	return outcome, nil
}
