package mcp

import (
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/andrewreder/solana-x402/go-api/x402"
	"github.com/andrewreder/solana-x402/go-api/x402/x402test"
)

var testBlockTime = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	gate      *x402.Gate
	ledger    *x402test.Ledger
	recipient string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	recipient := x402test.NewAddress()
	cfg, err := x402.NewServerConfig(x402.ServerOptions{
		RecipientAddress: recipient,
		Network:          x402.NetworkDevnet,
	})
	if err != nil {
		t.Fatalf("NewServerConfig error: %v", err)
	}
	ledger := x402test.NewLedger()
	verifier := x402.NewVerifier(cfg, ledger, x402.WithClock(func() time.Time {
		return testBlockTime.Add(time.Minute)
	}))
	return &testEnv{
		gate:      x402.NewGate(verifier),
		ledger:    ledger,
		recipient: recipient,
	}
}

func (e *testEnv) pay(units string) x402test.Payment {
	return e.ledger.RecordPayment(e.recipient, x402.USDCDevnetMint, units, testBlockTime)
}

func callRequest(name string, meta map[string]any) *sdkmcp.CallToolRequest {
	return &sdkmcp.CallToolRequest{
		Params: &sdkmcp.CallToolParamsRaw{
			Name: name,
			Meta: meta,
		},
	}
}

// decodeText unmarshals the first text content of result into v.
func decodeText(t *testing.T, result *sdkmcp.CallToolResult, v any) {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %+v", result)
	}
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("expected content text to be JSON: %v", err)
	}
}
