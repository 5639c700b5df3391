package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	mcpserver "github.com/andrewreder/solana-x402/go-api/mcp"
	"github.com/andrewreder/solana-x402/go-api/x402"
)

const defaultBaseURL = "http://localhost:8080"

// Options configure the router.
type Options struct {
	// BaseURL prefixes advertised resource URLs.
	BaseURL string

	// PremiumAmount is the price of GET /premium. Empty uses the configured default.
	PremiumAmount string

	Logger *slog.Logger
}

// X402EndpointEntry is one discoverable paid endpoint.
type X402EndpointEntry struct {
	Accepts     []x402.PaymentRequirement `json:"accepts"`
	LastUpdated string                    `json:"lastUpdated"`
	Resource    string                    `json:"resource"`
	Type        string                    `json:"type"`
	X402Version int                       `json:"x402Version"`
}

// RequireRequest asks for a payment requirement body.
type RequireRequest struct {
	Amount     string `json:"amount"`
	ResourceID string `json:"resourceId"`
}

// VerifyRequest asks for a ledger verification of a submitted transaction.
type VerifyRequest struct {
	Signature      string `json:"signature"      binding:"required"`
	ExpectedAmount string `json:"expectedAmount"`
	// MaxAge in seconds. Defaults to the configured max age.
	MaxAge *int `json:"maxAge,omitempty" binding:"omitempty,min=60,max=3600"`
}

// PremiumResponse is the body of the paid demo resource.
type PremiumResponse struct {
	Message string `json:"message"`
	Payer   string `json:"payer"`
	Amount  string `json:"amount"`
	Tx      string `json:"transaction"`
}

// NewRouter builds the Gin router with all HTTP routes registered.
func NewRouter(gate *x402.Gate, opts Options) (*gin.Engine, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	attachRequestLogging(r, opts.Logger)
	registerHealthRoute(r, gate)
	if err := registerDiscoveryRoutes(r, gate, opts); err != nil {
		return nil, err
	}
	registerPaymentRoutes(r, gate)
	registerPremiumRoute(r, gate, opts)
	registerMCPRoute(r, gate, opts)

	return r, nil
}

func premiumOptions(opts Options) x402.RequirementOptions {
	return x402.RequirementOptions{
		Resource:    opts.BaseURL + "/premium",
		Description: "Premium content",
		Amount:      opts.PremiumAmount,
	}
}

func attachRequestLogging(r *gin.Engine, logger *slog.Logger) {
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"x_payment", c.GetHeader(x402.PaymentHeader) != "",
		)
	})
}

func registerHealthRoute(r *gin.Engine, gate *x402.Gate) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"network": gate.Config().NetworkID(),
		})
	})
}

func registerDiscoveryRoutes(r *gin.Engine, gate *x402.Gate, opts Options) error {
	premium := premiumOptions(opts)
	// Fail at startup rather than on every discovery call.
	if _, err := gate.Builder().Create402Response(premium); err != nil {
		return fmt.Errorf("invalid premium price: %w", err)
	}

	// GET /discovery/x402 - Returns x402 entries for available HTTP endpoints
	r.GET("/discovery/x402", func(c *gin.Context) {
		resp, err := gate.Builder().Create402Response(premium)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		entries := []X402EndpointEntry{
			{
				Accepts:     resp.Accepts,
				LastUpdated: time.Now().UTC().Format(time.RFC3339Nano),
				Resource:    premium.Resource,
				Type:        "http",
				X402Version: resp.X402Version,
			},
		}

		c.JSON(http.StatusOK, gin.H{
			"entries": entries,
		})
	})
	return nil
}

func registerPaymentRoutes(r *gin.Engine, gate *x402.Gate) {
	// POST /x402/require - Renders a payment requirement for an arbitrary resource
	r.POST("/x402/require", func(c *gin.Context) {
		var req RequireRequest
		// An empty body asks for the default price.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := gate.Builder().Create402Response(x402.RequirementOptions{
			Resource:    req.ResourceID,
			Description: "Payment required",
			Amount:      req.Amount,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	// POST /x402/verify - Verifies a transaction signature against the ledger
	r.POST("/x402/verify", func(c *gin.Context) {
		var req VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		amount := req.ExpectedAmount
		if amount == "" {
			amount = gate.Config().DefaultAmount()
		}
		var verifyOpts []x402.VerifyOption
		if req.MaxAge != nil {
			verifyOpts = append(verifyOpts, x402.WithMaxAge(time.Duration(*req.MaxAge)*time.Second))
		}

		result := gate.Verifier().VerifyPayment(c.Request.Context(), req.Signature, amount, verifyOpts...)
		c.JSON(http.StatusOK, result)
	})
}

func registerPremiumRoute(r *gin.Engine, gate *x402.Gate, opts Options) {
	// GET /premium - Paid demo resource
	r.GET("/premium", PaymentMiddleware(gate, premiumOptions(opts), opts.Logger), func(c *gin.Context) {
		payment := GetPaymentFromContext(c)
		if payment == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment missing from context"})
			return
		}
		c.JSON(http.StatusOK, PremiumResponse{
			Message: "Thanks for paying with x402",
			Payer:   payment.From,
			Amount:  payment.Amount,
			Tx:      payment.Signature,
		})
	})
}

func registerMCPRoute(r *gin.Engine, gate *x402.Gate, opts Options) {
	// MCP streamable HTTP endpoint
	server := mcpserver.NewServer(gate,
		mcpserver.WithLogger(opts.Logger),
		mcpserver.WithServerURL(opts.BaseURL+"/discovery/mcp"),
		mcpserver.WithPremiumPrice(opts.PremiumAmount),
	)
	r.Any("/discovery/mcp", gin.WrapH(server.Handler()))
}
