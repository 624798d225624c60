// cmd/certctl/keys.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"certificate-workers/internal/certificate/signature"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		bits  int
		keyID string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an approver signing key pair",
		Long: `Generate an RSA key pair for an approver.

The publicKey (or publicJwk) is registered on the approver's user record.
The privateKey stays with the approver's signing client.

Example:
  certctl keygen --bits 2048 --key-id approver-42`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keyID == "" {
				keyID = uuid.NewString()
			}
			kp, err := signature.GenerateKeyPair(bits, keyID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(kp)
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size in bits")
	cmd.Flags().StringVar(&keyID, "key-id", "", "Key ID for the JWK (defaults to a generated UUID)")
	return cmd
}

type signOutput struct {
	Payload         string `json:"payload"`
	Signature       string `json:"signature"`
	SignedTimestamp int64  `json:"signedTimestamp"`
}

func newSignCmd() *cobra.Command {
	var (
		payload signature.Payload
		keyFile string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an approval decision the way an approver client does",
		Long: `Produce the signature and signedTimestamp expected by the decide-approval worker.

Example:
  certctl sign --application app-1 --approver t-1 --action APPROVE --key-file approver.key`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("read private key: %w", err)
			}
			if payload.Timestamp == 0 {
				payload.Timestamp = time.Now().UnixMilli()
			}
			payload.Action = strings.ToUpper(payload.Action)

			canonical := payload.Canonical()
			sig, err := signature.Sign(canonical, strings.TrimSpace(string(raw)))
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(signOutput{
				Payload:         canonical,
				Signature:       sig,
				SignedTimestamp: payload.Timestamp,
			})
		},
	}
	cmd.Flags().StringVar(&payload.ApplicationID, "application", "", "Application ID")
	cmd.Flags().StringVar(&payload.ApproverID, "approver", "", "Approver user ID")
	cmd.Flags().StringVar(&payload.Action, "action", "APPROVE", "APPROVE or REJECT")
	cmd.Flags().StringVar(&payload.Comment, "comment", "", "Decision comment")
	cmd.Flags().Int64Var(&payload.Timestamp, "timestamp", 0, "Signing time in unix milliseconds (defaults to now)")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "File holding the base64 PKCS#8 or JWK private key")
	_ = cmd.MarkFlagRequired("application")
	_ = cmd.MarkFlagRequired("approver")
	_ = cmd.MarkFlagRequired("key-file")
	return cmd
}
