// Command hashpw prints a bcrypt hash for a password, for seeding
// accounts by hand.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"authgate/internal/domain/auth/credential"
)

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hashpw [-cost N] <password>")
		os.Exit(2)
	}

	hash, err := credential.NewVerifier(*cost).Hash(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpw: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
