// Command pdwctl is an operator tool for identities, keys and a local
// end-to-end demo against the sandbox.
package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sandbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
	httptransport "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/transport/http"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "pdwctl",
		Short:        "Personal data wallet operator tool",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.AddCommand(newIdentityCmd(), newKeygenCmd(), newSignCmd(), newDemoCmd())
	return root
}

func newIdentityCmd() *cobra.Command {
	var pkg string
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Encode and decode access-policy identities",
	}
	cmd.PersistentFlags().StringVar(&pkg, "package", sandbox.DefaultPackageID.String(), "policy package id")

	var req httptransport.IdentityRequest
	var owner, app, expires string
	encode := &cobra.Command{
		Use:   "encode",
		Short: "Print the hex identity bytes for a policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := encoderFor(pkg)
			if err != nil {
				return err
			}
			if req.Owner, err = domain.ParseAddress(owner); err != nil {
				return fmt.Errorf("--owner: %w", err)
			}
			if app != "" {
				if req.App, err = domain.ParseAddress(app); err != nil {
					return fmt.Errorf("--app: %w", err)
				}
			}
			if expires != "" {
				if req.ExpiresAt, err = time.Parse(time.RFC3339, expires); err != nil {
					return fmt.Errorf("--expires: %w", err)
				}
			}
			id, err := req.ToIdentity()
			if err != nil {
				return err
			}
			b, err := enc.Encode(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(b))
			return nil
		},
	}
	encode.Flags().StringVar(&req.Kind, "kind", "self", "self, app, time_locked or role")
	encode.Flags().StringVar(&owner, "owner", "", "owner wallet address")
	encode.Flags().StringVar(&app, "app", "", "app address for app identities")
	encode.Flags().StringVar(&expires, "expires", "", "RFC 3339 expiry for time_locked identities")
	encode.Flags().StringVar(&req.Role, "role", "", "role name for role identities")
	_ = encode.MarkFlagRequired("owner")

	decode := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Describe hex identity bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := encoderFor(pkg)
			if err != nil {
				return err
			}
			b, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
			if err != nil {
				return err
			}
			id, err := enc.Decode(b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.String())
			return nil
		},
	}

	cmd.AddCommand(encode, decode)
	return cmd
}

func encoderFor(pkg string) (*identity.Encoder, error) {
	id, err := domain.ParseObjectID(pkg)
	if err != nil {
		return nil, fmt.Errorf("--package: %w", err)
	}
	return identity.NewEncoder(id), nil
}

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate key material for configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "keyserver",
			Short: "Generate an X25519 key-server key pair",
			RunE: func(cmd *cobra.Command, _ []string) error {
				kp, err := sealbox.GenerateKeyPair()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"private_key": hex.EncodeToString(kp.Private),
					"public_key":  hex.EncodeToString(kp.Public),
				})
			},
		},
		&cobra.Command{
			Use:   "wallet",
			Short: "Generate an ed25519 wallet seed and its address",
			RunE: func(cmd *cobra.Command, _ []string) error {
				w, err := wallet.GenerateEd25519()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"seed":    w.Seed(),
					"address": w.Address().String(),
				})
			},
		},
		&cobra.Command{
			Use:   "session-seed",
			Short: "Generate a session manager seed",
			RunE: func(cmd *cobra.Command, _ []string) error {
				seed, err := session.NewSeed()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(seed))
				return nil
			},
		},
	)
	return cmd
}

// newSignCmd signs a session challenge the way a wallet would, for driving
// the gateway's signature endpoint by hand.
func newSignCmd() *cobra.Command {
	var seed, challenge string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a base64 session challenge with an ed25519 wallet seed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := hex.DecodeString(strings.TrimPrefix(seed, "0x"))
			if err != nil {
				return fmt.Errorf("--seed: %w", err)
			}
			w, err := wallet.NewEd25519FromSeed(raw)
			if err != nil {
				return err
			}
			msg, err := base64.StdEncoding.DecodeString(challenge)
			if err != nil {
				return fmt.Errorf("--challenge: %w", err)
			}
			sig, err := w.SignPersonalMessage(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"address":   w.Address().String(),
				"signature": sig.Base64(),
			})
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "hex ed25519 wallet seed")
	cmd.Flags().StringVar(&challenge, "challenge", "", "base64 challenge from POST /v1/sessions")
	_ = cmd.MarkFlagRequired("seed")
	_ = cmd.MarkFlagRequired("challenge")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
