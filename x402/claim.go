package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	x402types "github.com/coinbase/x402/go/types"
	"github.com/gagliardetto/solana-go"
)

type claimEnvelope struct {
	Scheme    string          `json:"scheme"`
	Network   string          `json:"network"`
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

type claimPayload struct {
	Signature string `json:"signature"`
}

// DecodeClaim decodes an X-PAYMENT header value: base64 encoded JSON carrying
// a transaction signature under payload.signature or a top-level signature.
// Every failure wraps ErrMalformedClaim.
func DecodeClaim(header string) (PaymentClaim, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return PaymentClaim{}, fmt.Errorf("%w: empty header", ErrMalformedClaim)
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(header)
		if err != nil {
			return PaymentClaim{}, fmt.Errorf("%w: invalid base64: %v", ErrMalformedClaim, err)
		}
	}

	var envelope claimEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PaymentClaim{}, fmt.Errorf("%w: invalid JSON: %v", ErrMalformedClaim, err)
	}

	signature := envelope.Signature
	if len(envelope.Payload) > 0 {
		var payload claimPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err == nil && payload.Signature != "" {
			signature = payload.Signature
		}
	}
	if signature == "" {
		return PaymentClaim{}, fmt.Errorf("%w: missing signature", ErrMalformedClaim)
	}
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return PaymentClaim{}, fmt.Errorf("%w: invalid signature: %v", ErrMalformedClaim, err)
	}

	claim := PaymentClaim{
		Signature: signature,
		Scheme:    envelope.Scheme,
		Network:   envelope.Network,
	}
	if version, err := x402types.DetectVersion(raw); err == nil {
		claim.X402Version = version
	}
	return claim, nil
}

// EncodeClaim is the inverse of DecodeClaim, producing a v1 header value
// with the signature nested under payload.
func EncodeClaim(claim PaymentClaim) (string, error) {
	version := claim.X402Version
	if version == 0 {
		version = X402Version
	}
	body := map[string]any{
		"x402Version": version,
		"payload": map[string]string{
			"signature": claim.Signature,
		},
	}
	if claim.Scheme != "" {
		body["scheme"] = claim.Scheme
	}
	if claim.Network != "" {
		body["network"] = claim.Network
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment claim: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}
