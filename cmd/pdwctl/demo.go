package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/decryption"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/logger"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/registry"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sandbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	sessmemory "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session/store/memory"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/wallet"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

func newDemoCmd() *cobra.Command {
	var servers, threshold int
	var verbose bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Encrypt and decrypt under each access policy against an in-process sandbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), demoConfig{servers: servers, threshold: threshold, verbose: verbose})
		},
	}
	cmd.Flags().IntVar(&servers, "servers", 3, "key servers in the sandbox")
	cmd.Flags().IntVar(&threshold, "threshold", 2, "shares needed to decrypt")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log pipeline activity to stderr")
	return cmd
}

type demoConfig struct {
	servers   int
	threshold int
	verbose   bool
}

type demo struct {
	sb       *sandbox.Sandbox
	svc      *decryption.Service
	seq      int
	requests []decryption.Request
}

func runDemo(ctx context.Context, out io.Writer, cfg demoConfig) error {
	log := logger.Discard()
	if cfg.verbose {
		log = logger.NewWithWriter(os.Stderr, logger.Config{Format: "text", Level: "debug"})
	}
	sb, err := sandbox.New(sandbox.Config{Servers: cfg.servers, Threshold: cfg.threshold, Logger: log})
	if err != nil {
		return err
	}

	alice, err := wallet.GenerateEd25519()
	if err != nil {
		return err
	}
	bob, err := wallet.GenerateEd25519()
	if err != nil {
		return err
	}
	app, err := wallet.GenerateSecp256k1()
	if err != nil {
		return err
	}

	seed, err := session.NewSeed()
	if err != nil {
		return err
	}
	sessions, err := session.New(sessmemory.NewInMemoryStore(), seed, session.WithLogger(log), session.WithClock(sb.Now))
	if err != nil {
		return err
	}
	dcfg := decryption.DefaultConfig()
	dcfg.PackageID = sb.PackageID
	dcfg.RegistryRef = sb.RegistryRef
	svc, err := decryption.New(dcfg, sessions, sb.Threshold,
		decryption.WithLogger(log),
		decryption.WithSigners(wallet.NewKeyring(alice, bob, app)),
	)
	if err != nil {
		return err
	}
	d := &demo{sb: sb, svc: svc}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "sandbox\t%d servers, threshold %d, package %s\n", cfg.servers, cfg.threshold, sb.PackageID)
	fmt.Fprintf(tw, "alice\t%s\n", alice.Address())
	fmt.Fprintf(tw, "bob\t%s\n", bob.Address())
	fmt.Fprintf(tw, "app\t%s\n\n", app.Address())
	fmt.Fprintln(tw, "STEP\tPOLICY\tREADER\tOUTCOME")

	a, b := alice.Address(), bob.Address()
	selfID := identity.Self(a)
	steps := []struct {
		name   string
		id     identity.Identity
		reader domain.Address
		before func() error
	}{
		{name: "owner reads own memory", id: selfID, reader: a},
		{name: "stranger reads it", id: selfID, reader: b},
		{name: "after allowlist grant", id: selfID, reader: b, before: func() error {
			return sb.Grant(ctx, a, b, registry.ScopeSelf, domain.AccessLevelRead, sb.Now().Add(time.Hour))
		}},
		{name: "after revocation", id: selfID, reader: b, before: func() error {
			return sb.Revoke(ctx, a, b, registry.ScopeSelf)
		}},
		{name: "app reads app memory", id: identity.App(a, app.Address()), reader: app.Address()},
		{name: "time lock still open", id: identity.TimeLocked(a, sb.Now().Add(30*time.Minute)), reader: a},
		{name: "time lock after expiry", id: identity.TimeLocked(a, sb.Now().Add(30*time.Minute)), reader: a, before: func() error {
			sb.Chain.Advance(time.Hour)
			return nil
		}},
	}
	for _, st := range steps {
		if st.before != nil {
			if err := st.before(); err != nil {
				return fmt.Errorf("%s: %w", st.name, err)
			}
		}
		req, err := d.encrypt(ctx, st.id, st.reader, st.name)
		if err != nil {
			return fmt.Errorf("%s: %w", st.name, err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.name, st.id.Kind, short(st.reader), d.outcome(ctx, req))
	}

	batch := d.svc.DecryptBatch(ctx, d.requests)
	fmt.Fprintf(tw, "\nbatch of %d\t%d decrypted\t%d failed\t\n", len(d.requests), len(batch.Successful), len(batch.Failed))
	st := d.svc.Stats()
	fmt.Fprintf(tw, "stats\t%d total\t%d cache hits\tavg %s\n", st.Total, st.CacheHits, st.AverageLatency.Round(time.Microsecond))
	return tw.Flush()
}

// encrypt seals plaintext under id and returns a request for reader.
func (d *demo) encrypt(ctx context.Context, id identity.Identity, reader domain.Address, plaintext string) (decryption.Request, error) {
	idBytes, err := d.sb.Encoder.Encode(id)
	if err != nil {
		return decryption.Request{}, err
	}
	res, err := d.sb.Threshold.Encrypt(ctx, idBytes, []byte(plaintext))
	if err != nil {
		return decryption.Request{}, err
	}
	d.seq++
	req := decryption.Request{
		MemoryID:    fmt.Sprintf("memory-%d", d.seq),
		UserAddress: reader,
		Ciphertext:  res.Ciphertext,
	}
	d.requests = append(d.requests, req)
	return req, nil
}

func (d *demo) outcome(ctx context.Context, req decryption.Request) string {
	res, err := d.svc.DecryptOne(ctx, req)
	if err != nil {
		return "denied: " + string(decryption.Classify(err))
	}
	return fmt.Sprintf("ok %q", res.Plaintext)
}

func short(a domain.Address) string {
	s := a.String()
	if len(s) <= 12 {
		return s
	}
	return s[:8] + ".." + s[len(s)-4:]
}
