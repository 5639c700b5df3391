package mcp

// RequirePaymentParams defines parameters for the require_payment tool.
type RequirePaymentParams struct {
	// Amount in the asset's decimal unit, e.g. "0.01".
	Amount string `json:"amount,omitempty" jsonschema:"Amount in USDC required to access the resource"`
	// ResourceID identifies the protected resource.
	ResourceID string `json:"resourceId,omitempty" jsonschema:"Optional unique identifier for the protected resource"`
}

// VerifyPaymentParams defines parameters for the verify_payment tool.
type VerifyPaymentParams struct {
	// Signature of the submitted payment transaction.
	Signature string `json:"signature" jsonschema:"Transaction signature to verify"`
	// ExpectedAmount in the asset's decimal unit.
	ExpectedAmount string `json:"expectedAmount,omitempty" jsonschema:"Expected payment amount in USDC"`
	// MaxAge in seconds, between 60 and 3600.
	MaxAge *int `json:"maxAge,omitempty" jsonschema:"Maximum transaction age in seconds"`
}

// PremiumContentParams defines parameters for the paid premium content tool.
type PremiumContentParams struct {
	Topic string `json:"topic,omitempty" jsonschema:"Topic of the premium report"`
}

// PremiumContentOutput is returned once the premium tool is paid for.
type PremiumContentOutput struct {
	Topic       string `json:"topic"`
	Report      string `json:"report"`
	Payer       string `json:"payer"`
	Transaction string `json:"transaction"`
}
