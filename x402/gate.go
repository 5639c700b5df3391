package x402

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Decision is the gate's verdict for one request.
type Decision struct {
	// Admitted is true when the request may proceed to the resource.
	Admitted bool

	// Result is set whenever a claim was verified.
	Result *VerificationResult

	// Reason is set when a submitted claim was rejected.
	Reason Reason

	// Response is the 402 body to emit when not admitted.
	Response *PaymentRequiredResponse
}

// Gate combines the builder and verifier into a per-request payment decision.
type Gate struct {
	builder  *Builder
	verifier *Verifier
	logger   *slog.Logger
}

// NewGate creates a Gate using verifier's configuration.
func NewGate(verifier *Verifier) *Gate {
	return &Gate{
		builder:  NewBuilder(verifier.Config()),
		verifier: verifier,
		logger:   verifier.logger,
	}
}

// Builder returns the requirement builder used by the gate.
func (g *Gate) Builder() *Builder {
	return g.builder
}

// Verifier returns the verifier used by the gate.
func (g *Gate) Verifier() *Verifier {
	return g.verifier
}

// Config returns the gate's server configuration.
func (g *Gate) Config() *ServerConfig {
	return g.verifier.Config()
}

// Evaluate decides whether a request carrying header (the raw X-PAYMENT value,
// possibly empty) may access the resource described by opts. maxAge of zero
// uses the configured default.
func (g *Gate) Evaluate(ctx context.Context, header string, opts RequirementOptions, maxAge time.Duration) (Decision, error) {
	if header == "" {
		return g.reject("", opts, "")
	}

	claim, err := DecodeClaim(header)
	if err != nil {
		g.logger.Warn("invalid payment header", "error", err)
		return g.reject(ReasonMalformedClaim, opts, fmt.Sprintf("payment processing error: %v", err))
	}

	if err := g.checkClaim(claim); err != nil {
		g.logger.Warn("payment claim does not match requirement", "error", err)
		return g.reject(ReasonMalformedClaim, opts, fmt.Sprintf("payment processing error: %v", err))
	}

	amount := opts.Amount
	if amount == "" {
		amount = g.verifier.Config().DefaultAmount()
	}

	var verifyOpts []VerifyOption
	if maxAge > 0 {
		verifyOpts = append(verifyOpts, WithMaxAge(maxAge))
	}
	result := g.verifier.VerifyPayment(ctx, claim.Signature, amount, verifyOpts...)
	if !result.Valid {
		msg := result.Error
		if msg == "" {
			msg = "payment verification failed"
		}
		decision, err := g.reject(result.Reason, opts, msg)
		decision.Result = &result
		return decision, err
	}

	return Decision{Admitted: true, Result: &result}, nil
}

func (g *Gate) reject(reason Reason, opts RequirementOptions, msg string) (Decision, error) {
	opts.Error = msg
	response, err := g.builder.Create402Response(opts)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Reason: reason, Response: &response}, nil
}

// checkClaim rejects claims whose optional metadata names a different
// version, scheme or network than the one this gate accepts.
func (g *Gate) checkClaim(claim PaymentClaim) error {
	if claim.X402Version > X402Version {
		return fmt.Errorf("%w: unsupported x402Version %d", ErrMalformedClaim, claim.X402Version)
	}
	if claim.Scheme != "" && claim.Scheme != SchemeExact {
		return fmt.Errorf("%w: unsupported scheme %q", ErrMalformedClaim, claim.Scheme)
	}
	if network := g.Config().NetworkID(); claim.Network != "" && claim.Network != network {
		return fmt.Errorf("%w: network %q does not match %q", ErrMalformedClaim, claim.Network, network)
	}
	return nil
}
