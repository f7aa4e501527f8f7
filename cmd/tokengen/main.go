// Command tokengen prints a caller token for a registry identity.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/pigeon-sms/pigeon/internal/auth"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Getenv("TOKEN_SECRET"), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, secret string, out io.Writer) error {
	fs := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	sub := fs.String("sub", "", "identity handle to embed as the token subject")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime, 0 for no expiry")
	fs.StringVar(&secret, "secret", secret, "signing secret (defaults to TOKEN_SECRET)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		return fmt.Errorf("-sub is required")
	}
	if secret == "" {
		return fmt.Errorf("TOKEN_SECRET or -secret is required")
	}

	token, err := auth.NewTokenService(secret, *ttl).Issue(*sub)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
