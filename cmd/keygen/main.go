// keygen generates the secrets a fresh install needs: an ECDSA P-256 signing
// key pair for session tokens and a random STATE_SECRET for sealing OAuth
// state. Key files land in -dir; the matching env lines go to stdout.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moneywright/moneywright/internal/security"
)

func main() {
	dir := flag.String("dir", ".", "Directory to write signing_key.pem and signing_key.pub.pem into")
	flag.Parse()

	privPEM, pubPEM, err := security.GenerateSigningKeyPEM()
	if err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}

	privPath := filepath.Join(*dir, "signing_key.pem")
	pubPath := filepath.Join(*dir, "signing_key.pub.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}

	fmt.Printf("JWT_PRIVATE_KEY=%s\n", privPath)
	fmt.Printf("JWT_PUBLIC_KEY=%s\n", pubPath)
	fmt.Printf("STATE_SECRET=%s\n", hex.EncodeToString(secret))
}
