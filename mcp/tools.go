package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/andrewreder/solana-x402/go-api/x402"
)

// Tool names.
const (
	RequirePaymentToolName = "require_payment"
	VerifyPaymentToolName  = "verify_payment"
	PremiumToolName        = "premium_content"
)

// registerTools registers all MCP tools for x402 payments.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        RequirePaymentToolName,
		Title:       "Require x402 Payment",
		Description: "Returns an x402 Payment Required body for a resource: the USDC amount, recipient and network a client must pay on Solana.",
		Meta: map[string]any{
			"x402/usage": map[string]any{
				"step": "require",
				"next": VerifyPaymentToolName,
			},
		},
	}, s.RequirePayment)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        VerifyPaymentToolName,
		Title:       "Verify x402 Payment",
		Description: "Verifies on the Solana ledger that a transaction signature paid at least expectedAmount USDC to the configured recipient.",
		Meta: map[string]any{
			"x402/usage": map[string]any{
				"step": "verify",
			},
		},
	}, s.VerifyPayment)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        PremiumToolName,
		Title:       "Premium Content",
		Description: "Paid tool. Attach a payment in meta x402/payment; unpaid calls return the requirement under x402/payment-required.",
		Meta: map[string]any{
			"x402/usage": map[string]any{
				"step": "execute",
				"via":  MetaKeyPayment,
			},
		},
	}, WrapToolHandler(s.paywall, PremiumToolName, s.PremiumContent))
}

// RequirePayment renders a payment requirement body.
// This method is exported for testing purposes.
func (s *Server) RequirePayment(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params *RequirePaymentParams,
) (*mcp.CallToolResult, any, error) {
	if params == nil {
		params = &RequirePaymentParams{}
	}
	resp, err := s.gate.Builder().Create402Response(x402.RequirementOptions{
		Resource:    params.ResourceID,
		Description: "Payment required",
		Amount:      params.Amount,
	})
	if err != nil {
		return errorResult("Error: %v", err), nil, nil
	}
	result, err := jsonResult(resp, false)
	return result, nil, err
}

// VerifyPayment verifies a transaction signature against the ledger.
// A rejected payment is a normal result with valid=false, not a tool error.
func (s *Server) VerifyPayment(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params *VerifyPaymentParams,
) (*mcp.CallToolResult, any, error) {
	if params == nil || params.Signature == "" {
		return errorResult("Error: 'signature' parameter is required."), nil, nil
	}

	var opts []x402.VerifyOption
	if params.MaxAge != nil {
		maxAge := time.Duration(*params.MaxAge) * time.Second
		if maxAge < x402.MinMaxAge || maxAge > x402.MaxMaxAge {
			return errorResult("Error: 'maxAge' must be between %d and %d seconds.",
				int(x402.MinMaxAge.Seconds()), int(x402.MaxMaxAge.Seconds())), nil, nil
		}
		opts = append(opts, x402.WithMaxAge(maxAge))
	}

	amount := params.ExpectedAmount
	if amount == "" {
		amount = s.gate.Config().DefaultAmount()
	}

	verification := s.gate.Verifier().VerifyPayment(ctx, params.Signature, amount, opts...)
	result, err := jsonResult(verification, false)
	return result, nil, err
}

// PremiumContent is the paid tool body; it only runs once the paywall admits the call.
func (s *Server) PremiumContent(
	ctx context.Context,
	req *mcp.CallToolRequest,
	params *PremiumContentParams,
) (*mcp.CallToolResult, any, error) {
	payment := PaymentFromContext(ctx)
	if payment == nil {
		return nil, nil, fmt.Errorf("premium content called without a verified payment")
	}

	topic := "solana"
	if params != nil && params.Topic != "" {
		topic = params.Topic
	}

	result, err := jsonResult(PremiumContentOutput{
		Topic:       topic,
		Report:      fmt.Sprintf("Premium report on %s, paid with %s USDC", topic, payment.Amount),
		Payer:       payment.From,
		Transaction: payment.Signature,
	}, false)
	return result, nil, err
}
