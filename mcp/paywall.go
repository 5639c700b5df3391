package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/andrewreder/solana-x402/go-api/x402"
)

// ToolPricing maps tool names to their price in the asset's decimal unit.
// An empty price uses the configured default amount.
type ToolPricing map[string]string

// Paywall wraps MCP tool handlers with x402 payment verification.
type Paywall struct {
	gate      *x402.Gate
	serverURL string
	logger    *slog.Logger

	mu      sync.RWMutex
	pricing ToolPricing
}

// NewPaywall creates a paywall that verifies payments through gate.
func NewPaywall(gate *x402.Gate, serverURL string, logger *slog.Logger) *Paywall {
	if logger == nil {
		logger = slog.Default()
	}
	return &Paywall{
		gate:      gate,
		serverURL: serverURL,
		logger:    logger,
		pricing:   make(ToolPricing),
	}
}

// SetToolPrice sets the price for a specific tool.
func (p *Paywall) SetToolPrice(toolName, amount string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pricing[toolName] = amount
}

// RequirementOptions returns the requirement rendered for toolName, or false
// when the tool is free.
func (p *Paywall) RequirementOptions(toolName string) (x402.RequirementOptions, bool) {
	p.mu.RLock()
	amount, ok := p.pricing[toolName]
	p.mu.RUnlock()
	if !ok {
		return x402.RequirementOptions{}, false
	}
	return x402.RequirementOptions{
		Resource:    fmt.Sprintf("%s/tools/%s", p.serverURL, toolName),
		Description: fmt.Sprintf("MCP Tool: %s", toolName),
		Amount:      amount,
		Method:      "POST",
	}, true
}

type paymentContextKey struct{}

// PaymentFromContext returns the verification result admitted by the paywall.
func PaymentFromContext(ctx context.Context) *x402.VerificationResult {
	result, _ := ctx.Value(paymentContextKey{}).(*x402.VerificationResult)
	return result
}

// WrapToolHandler wraps an MCP tool handler with x402 payment verification.
// Unpaid calls return an error result carrying the requirement under
// x402/payment-required. Paid calls are annotated with x402/payment-response.
func WrapToolHandler[In, Out any](
	p *Paywall,
	toolName string,
	handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error),
) func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		var zero Out

		opts, priced := p.RequirementOptions(toolName)
		if !priced {
			return handler(ctx, req, input)
		}

		header, err := paymentHeaderFromMeta(extractMeta(req))
		if err != nil {
			p.logger.Warn("invalid payment metadata", "tool", toolName, "error", err)
			opts.Error = fmt.Sprintf("payment processing error: %v", err)
			resp, berr := p.gate.Builder().Create402Response(opts)
			if berr != nil {
				return nil, zero, fmt.Errorf("payment requirement for %s: %w", toolName, berr)
			}
			result, rerr := paymentRequiredResult(resp)
			return result, zero, rerr
		}

		decision, err := p.gate.Evaluate(ctx, header, opts, 0)
		if err != nil {
			return nil, zero, fmt.Errorf("payment requirement for %s: %w", toolName, err)
		}
		if !decision.Admitted {
			if decision.Reason != "" {
				p.logger.Warn("payment rejected", "tool", toolName, "reason", decision.Reason)
			}
			result, rerr := paymentRequiredResult(*decision.Response)
			return result, zero, rerr
		}

		payment := decision.Result
		p.logger.Info("payment verified", "tool", toolName, "signature", payment.Signature, "payer", payment.From)

		result, out, err := handler(context.WithValue(ctx, paymentContextKey{}, payment), req, input)
		if err != nil {
			return result, out, err
		}

		if result == nil {
			result = &mcp.CallToolResult{}
		}
		if result.Meta == nil {
			result.Meta = make(map[string]any)
		}
		result.Meta[MetaKeyPaymentResponse] = &x402.SettleResponse{
			Success:     true,
			Network:     x402.Network(p.gate.Config().NetworkID()),
			Payer:       payment.From,
			Transaction: payment.Signature,
		}

		return result, out, nil
	}
}

func paymentRequiredResult(resp x402.PaymentRequiredResponse) (*mcp.CallToolResult, error) {
	result, err := jsonResult(resp, true)
	if err != nil {
		return nil, err
	}
	result.Meta = map[string]any{
		MetaKeyPaymentRequired: resp,
	}
	return result, nil
}
