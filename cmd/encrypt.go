package cmd

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/court-booker/internal/crypto"
)

// encrypt reads the password from stdin rather than argv so it never lands
// in shell history or the process table.
func newEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt the club password for CLUB_PASSWORD_ENC using CRED_ENC_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyB64 := strings.TrimSpace(os.Getenv("CRED_ENC_KEY"))
			if keyB64 == "" {
				return fmt.Errorf("CRED_ENC_KEY is not set (run 'courtbot keys' first)")
			}
			key, err := base64.StdEncoding.DecodeString(keyB64)
			if err != nil {
				key, err = base64.RawStdEncoding.DecodeString(keyB64)
			}
			if err != nil {
				return fmt.Errorf("CRED_ENC_KEY: %w", err)
			}
			aead, err := crypto.New(key)
			if err != nil {
				return fmt.Errorf("CRED_ENC_KEY: %w", err)
			}

			fmt.Fprint(os.Stderr, "Password: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			pw, err := reader.ReadString('\n')
			if err != nil && pw == "" {
				return fmt.Errorf("read password: %w", err)
			}
			pw = strings.TrimRight(pw, "\r\n")
			if pw == "" {
				return fmt.Errorf("empty password")
			}

			enc, err := aead.EncryptToString(pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "export CLUB_PASSWORD_ENC=%s\n", enc)
			return nil
		},
	}
}
