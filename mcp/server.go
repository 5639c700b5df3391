// Package mcp exposes the x402 requirement builder and payment verifier as
// MCP (Model Context Protocol) tools, plus a paid tool behind the paywall.
package mcp

import (
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/andrewreder/solana-x402/go-api/x402"
)

const defaultServerURL = "mcp://solana-x402"

// Server wraps the MCP server implementation for x402 payments.
type Server struct {
	mcpServer *mcp.Server
	gate      *x402.Gate
	paywall   *Paywall
	logger    *slog.Logger
	serverURL string
	price     string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerURL sets the prefix of advertised tool resources.
func WithServerURL(url string) ServerOption {
	return func(s *Server) {
		if url != "" {
			s.serverURL = url
		}
	}
}

// WithPremiumPrice sets the price of the paid tool. Empty uses the configured default.
func WithPremiumPrice(amount string) ServerOption {
	return func(s *Server) {
		s.price = amount
	}
}

// NewServer creates a new MCP server instance backed by gate.
func NewServer(gate *x402.Gate, opts ...ServerOption) *Server {
	s := &Server{
		gate:      gate,
		logger:    slog.Default(),
		serverURL: defaultServerURL,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    "solana-x402",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{},
	)
	s.paywall = NewPaywall(gate, s.serverURL, s.logger)
	s.paywall.SetToolPrice(PremiumToolName, s.price)

	s.registerTools()

	return s
}

// Paywall returns the paywall guarding the server's paid tools.
func (s *Server) Paywall() *Paywall {
	return s.paywall
}

// Handler returns an http.Handler for the MCP streamable HTTP transport.
// This handler should be mounted at /discovery/mcp.
func (s *Server) Handler() http.Handler {
	return s.HandlerWithOptions(nil)
}

// HandlerWithOptions returns an http.Handler for the MCP streamable HTTP transport
// with custom StreamableHTTPOptions.
func (s *Server) HandlerWithOptions(opts *mcp.StreamableHTTPOptions) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, opts)
}
