package mcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402types "github.com/coinbase/x402/go/types"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/andrewreder/solana-x402/go-api/x402"
)

// Metadata keys used to carry x402 data on MCP tool calls and results.
const (
	MetaKeyPayment         = "x402/payment"
	MetaKeyPaymentResponse = "x402/payment-response"
	MetaKeyPaymentRequired = "x402/payment-required"
)

type paymentHeader struct {
	Value   string
	Version int
}

// paymentHeaderFromMeta returns the X-PAYMENT value carried under
// x402/payment: either the header string itself or the payment payload object.
// An absent entry yields an empty header.
func paymentHeaderFromMeta(meta map[string]any) (string, error) {
	payment, ok := meta[MetaKeyPayment]
	if !ok || payment == nil {
		return "", nil
	}

	switch v := payment.(type) {
	case string:
		return v, nil
	case map[string]any:
		if payload, ok := v["payload"]; !ok || payload == nil {
			if _, ok := v["signature"]; !ok {
				return "", fmt.Errorf("%s metadata missing payload", MetaKeyPayment)
			}
		}
		header, err := encodePaymentHeader(v)
		if err != nil {
			return "", fmt.Errorf("unable to encode x402 payment payload: %w", err)
		}
		return header.Value, nil
	default:
		return "", fmt.Errorf("%s metadata must be an object or string, got %T", MetaKeyPayment, payment)
	}
}

// encodePaymentHeader base64-encodes payment as an X-PAYMENT value, stamping
// x402Version when the client left it out.
func encodePaymentHeader(payment map[string]any) (*paymentHeader, error) {
	payloadBytes, err := json.Marshal(payment)
	if err != nil {
		return nil, err
	}

	version, err := x402types.DetectVersion(payloadBytes)
	if err != nil || version == 0 {
		// Solana v1 clients often omit the version.
		version = x402.X402Version
		stamped := make(map[string]any, len(payment)+1)
		for k, v := range payment {
			stamped[k] = v
		}
		stamped["x402Version"] = version
		if payloadBytes, err = json.Marshal(stamped); err != nil {
			return nil, err
		}
	}

	return &paymentHeader{
		Value:   base64.StdEncoding.EncodeToString(payloadBytes),
		Version: version,
	}, nil
}

// extractMeta copies the _meta field from a CallToolRequest.
func extractMeta(req *mcp.CallToolRequest) map[string]any {
	result := make(map[string]any)
	if req == nil || req.Params == nil || req.Params.Meta == nil {
		return result
	}
	for k, v := range req.Params.Meta {
		result[k] = v
	}
	return result
}

// jsonResult renders v as both text and structured tool content.
func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	contentJSON, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: string(contentJSON),
			},
		},
		StructuredContent: v,
		IsError:           isError,
	}, nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{
				Text: fmt.Sprintf(format, args...),
			},
		},
		IsError: true,
	}
}
