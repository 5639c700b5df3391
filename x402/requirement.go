package x402

import "net/http"

// RequirementOptions describe the resource a requirement is rendered for.
type RequirementOptions struct {
	// Resource identifies the protected resource, usually its URL.
	Resource string

	// Description is shown to the payer.
	Description string

	// Amount is in the asset's decimal unit ("0.01"). Empty uses the configured default.
	Amount string

	// MimeType of the protected response. Defaults to application/json.
	MimeType string

	// Timeout overrides the configured maxTimeoutSeconds when positive.
	Timeout int

	// Method is the HTTP method advertised in outputSchema. Defaults to GET.
	Method string

	// Error is attached to the response after a failed verification.
	Error string
}

// Builder renders payment requirements from a ServerConfig.
type Builder struct {
	config *ServerConfig
}

// NewBuilder creates a Builder over cfg.
func NewBuilder(cfg *ServerConfig) *Builder {
	return &Builder{config: cfg}
}

// Create402Response builds the 402 response body for opts.
// The only failure is an amount that does not parse as a non-negative decimal.
func (b *Builder) Create402Response(opts RequirementOptions) (PaymentRequiredResponse, error) {
	amount := opts.Amount
	if amount == "" {
		amount = b.config.DefaultAmount()
	}
	units, err := ToSmallestUnit(amount, b.config.Decimals())
	if err != nil {
		return PaymentRequiredResponse{}, err
	}

	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = b.config.DefaultTimeout()
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var extra *Extra
	if feePayer := b.config.FeePayer(); feePayer != "" {
		extra = &Extra{FeePayer: feePayer}
	}

	requirement := PaymentRequirement{
		Scheme:            SchemeExact,
		Network:           b.config.NetworkID(),
		MaxAmountRequired: units.String(),
		Resource:          opts.Resource,
		Description:       opts.Description,
		MimeType:          mimeType,
		PayTo:             b.config.Recipient(),
		MaxTimeoutSeconds: timeout,
		Asset:             b.config.Asset(),
		OutputSchema: &OutputSchema{
			Input: InputSchema{
				Type:         "http",
				Method:       method,
				Discoverable: true,
			},
		},
		Extra: extra,
	}

	return PaymentRequiredResponse{
		X402Version: X402Version,
		Accepts:     []PaymentRequirement{requirement},
		Error:       opts.Error,
	}, nil
}

// Create402 is a shortcut that builds a requirement for recipient on network
// with every other setting at its default.
func Create402(recipient, network string, opts RequirementOptions) (PaymentRequiredResponse, error) {
	cfg, err := NewServerConfig(ServerOptions{
		RecipientAddress: recipient,
		Network:          network,
	})
	if err != nil {
		return PaymentRequiredResponse{}, err
	}
	return NewBuilder(cfg).Create402Response(opts)
}
