// Command keytool encrypts a Kalshi RSA private key for use with
// kalshi.encrypted_key_path, and checks that an encrypted key opens.
//
//	keytool encrypt -in key.pem -out key.enc
//	keytool verify -in key.enc
//
// The password is read from ARBSCAN_KALSHI_KEY_PASSWORD.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/alanyoungcy/arbscanner/internal/crypto"
	"github.com/alanyoungcy/arbscanner/internal/platform/kalshi"
)

const passwordEnv = "ARBSCAN_KALSHI_KEY_PASSWORD"

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	_ = godotenv.Load()

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	in := fs.String("in", "", "input file")
	out := fs.String("out", "", "output file (encrypt only)")
	_ = fs.Parse(os.Args[2:])

	password := os.Getenv(passwordEnv)
	if password == "" {
		fatalf("%s is not set", passwordEnv)
	}
	if *in == "" {
		fatalf("-in is required")
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		fatalf("read %s: %v", *in, err)
	}

	switch os.Args[1] {
	case "encrypt":
		if *out == "" {
			fatalf("-out is required")
		}
		if _, err := kalshi.ParsePrivateKey(data); err != nil {
			fatalf("%s: %v", *in, err)
		}
		enc, err := crypto.EncryptKey(data, password)
		if err != nil {
			fatalf("encrypt: %v", err)
		}
		if err := os.WriteFile(*out, enc, 0o600); err != nil {
			fatalf("write %s: %v", *out, err)
		}
		fmt.Printf("wrote %s\n", *out)
	case "verify":
		pemBytes, err := crypto.DecryptKey(data, password)
		if err != nil {
			fatalf("decrypt: %v", err)
		}
		if _, err := kalshi.ParsePrivateKey(pemBytes); err != nil {
			fatalf("decrypted key: %v", err)
		}
		fmt.Println("ok")
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: keytool encrypt -in key.pem -out key.enc | keytool verify -in key.enc")
	os.Exit(2)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "keytool: "+format+"\n", args...)
	os.Exit(1)
}
