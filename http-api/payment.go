package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andrewreder/solana-x402/go-api/x402"
)

// PaymentContextKey is the gin context key holding the verified *x402.VerificationResult.
const PaymentContextKey = "x402_payment"

// PaymentMiddleware wires x402 payment enforcement for a route. Requests without
// a valid X-PAYMENT header are answered with 402 and the requirement body.
// Admitted requests carry an X-PAYMENT-RESPONSE header and the verification
// result in the gin context.
func PaymentMiddleware(gate *x402.Gate, opts x402.RequirementOptions, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		reqOpts := opts
		if reqOpts.Resource == "" {
			reqOpts.Resource = c.Request.URL.Path
		}
		if reqOpts.Description == "" {
			reqOpts.Description = "Payment required for " + c.Request.URL.Path
		}
		if reqOpts.Method == "" {
			reqOpts.Method = c.Request.Method
		}

		header := c.GetHeader(x402.PaymentHeader)
		if header == "" {
			logger.Info("no payment header provided", "path", c.Request.URL.Path)
		}

		decision, err := gate.Evaluate(c.Request.Context(), header, reqOpts, 0)
		if err != nil {
			logger.Error("failed to build payment requirement", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "payment requirement misconfigured",
			})
			return
		}

		if !decision.Admitted {
			if decision.Reason != "" {
				logger.Warn("payment rejected",
					"path", c.Request.URL.Path,
					"reason", decision.Reason,
					"error", decision.Response.Error,
				)
			}
			c.AbortWithStatusJSON(http.StatusPaymentRequired, decision.Response)
			return
		}

		result := decision.Result
		logger.Info("payment verified",
			"path", c.Request.URL.Path,
			"signature", result.Signature,
			"payer", result.From,
			"amount", result.Amount,
		)

		settlement := x402.SettleResponse{
			Success:     true,
			Network:     x402.Network(gate.Config().NetworkID()),
			Payer:       result.From,
			Transaction: result.Signature,
		}
		if value, err := encodeSettlement(settlement); err != nil {
			logger.Warn("failed to add payment response header", "error", err)
		} else {
			c.Header(x402.PaymentResponseHeader, value)
		}

		c.Set(PaymentContextKey, result)
		c.Next()
	}
}

// GetPaymentFromContext returns the verification result stored by
// PaymentMiddleware, or nil when the request was not paid for.
func GetPaymentFromContext(c *gin.Context) *x402.VerificationResult {
	value, exists := c.Get(PaymentContextKey)
	if !exists {
		return nil
	}
	result, ok := value.(*x402.VerificationResult)
	if !ok {
		return nil
	}
	return result
}

func encodeSettlement(settlement x402.SettleResponse) (string, error) {
	payload, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}
