// Command pactverify replays every interaction of a Pact contract file
// against a live provider and reports per-interaction pass/fail with
// field-level diagnostics. Exit code 0 means every interaction verified.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/drpact/pactgen/internal/contract"
	"github.com/drpact/pactgen/internal/replay"
)

func main() {
	os.Exit(run())
}

func run() int {
	pactPath := flag.String("pact", "", "path to the pact contract file")
	providerURL := flag.String("provider-url", "http://localhost:7001", "address of the running provider")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	if *pactPath == "" {
		fmt.Fprintln(os.Stderr, "usage: pactverify --pact <file> [--provider-url <url>]")
		return 1
	}

	c, err := contract.Load(*pactPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load pact: %v\n", err)
		return 1
	}
	fmt.Printf("verifying %s -> %s (%d interactions)\n", c.Consumer.Name, c.Provider.Name, len(c.Interactions))

	v := &replay.Verifier{ProviderURL: *providerURL, RequestTimeout: *timeout}
	ctx := context.Background()

	if err := v.HealthCheck(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	report, err := v.Verify(ctx, c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verification aborted: %v\n", err)
		return 1
	}

	passed := 0
	for _, res := range report.Results {
		if res.Passed {
			passed++
			fmt.Printf("  PASS %s\n", res.Description)
		} else {
			fmt.Printf("  FAIL %s\n", res.Description)
			fmt.Printf("       %s\n", res.Diagnostic)
		}
	}
	fmt.Printf("%d/%d interactions verified\n", passed, len(report.Results))

	if !report.Passed() {
		return 1
	}
	return 0
}
