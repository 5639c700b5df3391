package x402

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Supported network selectors.
const (
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet-beta"
)

// USDC mint addresses per network.
const (
	USDCDevnetMint  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	USDCMainnetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCDecimals    = 6
)

// Defaults applied by NewServerConfig.
const (
	DefaultAmount         = "0.01"
	DefaultTimeoutSeconds = 60
	DefaultRPCTimeout     = 5 * time.Second
	DefaultMaxAge         = 300 * time.Second
	MinMaxAge             = 60 * time.Second
	MaxMaxAge             = 3600 * time.Second
)

// ChainName prefixes the network in the rendered requirement ("solana-devnet").
const ChainName = "solana"

var defaultMints = map[string]string{
	NetworkDevnet:  USDCDevnetMint,
	NetworkMainnet: USDCMainnetMint,
}

var defaultRPCURLs = map[string]string{
	NetworkDevnet:  rpc.DevNet_RPC,
	NetworkMainnet: rpc.MainNetBeta_RPC,
}

// ServerOptions are the caller-supplied settings. Empty fields take defaults.
type ServerOptions struct {
	RecipientAddress string
	Network          string
	AssetAddress     string
	AssetDecimals    int32
	DefaultAmount    string
	DefaultTimeout   int
	FeePayer         string
	RPCURL           string
	RPCTimeout       time.Duration
	MaxAge           time.Duration
}

// ServerConfig is the validated, immutable configuration shared by the
// requirement builder, the verifier and the gate.
type ServerConfig struct {
	recipient     string
	network       string
	asset         string
	decimals      int32
	defaultAmount string
	timeout       int
	feePayer      string
	rpcURL        string
	rpcTimeout    time.Duration
	maxAge        time.Duration
}

// NewServerConfig validates opts and fills in network-specific defaults.
func NewServerConfig(opts ServerOptions) (*ServerConfig, error) {
	if strings.TrimSpace(opts.RecipientAddress) == "" {
		return nil, ErrMissingRecipient
	}
	if _, err := solana.PublicKeyFromBase58(opts.RecipientAddress); err != nil {
		return nil, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, opts.RecipientAddress)
	}

	network := opts.Network
	if network == "" {
		network = NetworkDevnet
	}
	mint, ok := defaultMints[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNetwork, network)
	}

	cfg := &ServerConfig{
		recipient:     opts.RecipientAddress,
		network:       network,
		asset:         mint,
		decimals:      USDCDecimals,
		defaultAmount: DefaultAmount,
		timeout:       DefaultTimeoutSeconds,
		feePayer:      opts.FeePayer,
		rpcURL:        defaultRPCURLs[network],
		rpcTimeout:    DefaultRPCTimeout,
		maxAge:        DefaultMaxAge,
	}

	if opts.AssetAddress != "" {
		if _, err := solana.PublicKeyFromBase58(opts.AssetAddress); err != nil {
			return nil, fmt.Errorf("%w: asset %q", ErrInvalidAddress, opts.AssetAddress)
		}
		cfg.asset = opts.AssetAddress
	}
	if opts.AssetDecimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals %d", ErrInvalidAmount, opts.AssetDecimals)
	}
	if opts.AssetDecimals > 0 {
		cfg.decimals = opts.AssetDecimals
	}
	if opts.DefaultAmount != "" {
		if _, err := ParseAmount(opts.DefaultAmount); err != nil {
			return nil, err
		}
		cfg.defaultAmount = opts.DefaultAmount
	}
	if opts.DefaultTimeout < 0 {
		return nil, fmt.Errorf("%w: default timeout %d", ErrInvalidTimeout, opts.DefaultTimeout)
	}
	if opts.DefaultTimeout > 0 {
		cfg.timeout = opts.DefaultTimeout
	}
	if opts.FeePayer != "" {
		if _, err := solana.PublicKeyFromBase58(opts.FeePayer); err != nil {
			return nil, fmt.Errorf("%w: fee payer %q", ErrInvalidAddress, opts.FeePayer)
		}
	}
	if opts.RPCURL != "" {
		cfg.rpcURL = opts.RPCURL
	}
	if opts.RPCTimeout < 0 {
		return nil, fmt.Errorf("%w: rpc timeout %v", ErrInvalidTimeout, opts.RPCTimeout)
	}
	if opts.RPCTimeout > 0 {
		cfg.rpcTimeout = opts.RPCTimeout
	}
	if opts.MaxAge != 0 {
		if opts.MaxAge < MinMaxAge || opts.MaxAge > MaxMaxAge {
			return nil, fmt.Errorf("%w: max age %v outside [%v, %v]", ErrInvalidTimeout, opts.MaxAge, MinMaxAge, MaxMaxAge)
		}
		cfg.maxAge = opts.MaxAge
	}

	return cfg, nil
}

// ConfigFromEnv builds a ServerConfig from X402_* environment variables.
func ConfigFromEnv() (*ServerConfig, error) {
	opts := ServerOptions{
		RecipientAddress: strings.TrimSpace(os.Getenv("X402_RECIPIENT_ADDRESS")),
		Network:          strings.TrimSpace(os.Getenv("X402_NETWORK")),
		AssetAddress:     strings.TrimSpace(os.Getenv("X402_ASSET_ADDRESS")),
		DefaultAmount:    strings.TrimSpace(os.Getenv("X402_DEFAULT_AMOUNT")),
		FeePayer:         strings.TrimSpace(os.Getenv("X402_FEE_PAYER")),
		RPCURL:           strings.TrimSpace(os.Getenv("X402_RPC_URL")),
	}

	if raw := strings.TrimSpace(os.Getenv("X402_DEFAULT_TIMEOUT")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: X402_DEFAULT_TIMEOUT=%q", ErrInvalidTimeout, raw)
		}
		opts.DefaultTimeout = seconds
	}
	if raw := strings.TrimSpace(os.Getenv("X402_MAX_AGE")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: X402_MAX_AGE=%q", ErrInvalidTimeout, raw)
		}
		opts.MaxAge = time.Duration(seconds) * time.Second
	}
	if raw := strings.TrimSpace(os.Getenv("X402_RPC_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: X402_RPC_TIMEOUT=%q", ErrInvalidTimeout, raw)
		}
		opts.RPCTimeout = d
	}

	return NewServerConfig(opts)
}

func (c *ServerConfig) Recipient() string { return c.recipient }
func (c *ServerConfig) Network() string { return c.network }
func (c *ServerConfig) Asset() string { return c.asset }
func (c *ServerConfig) Decimals() int32 { return c.decimals }
func (c *ServerConfig) DefaultAmount() string { return c.defaultAmount }
func (c *ServerConfig) DefaultTimeout() int { return c.timeout }
func (c *ServerConfig) FeePayer() string { return c.feePayer }
func (c *ServerConfig) RPCURL() string { return c.rpcURL }
func (c *ServerConfig) RPCTimeout() time.Duration { return c.rpcTimeout }
func (c *ServerConfig) MaxAge() time.Duration { return c.maxAge }

// NetworkID renders the network as it appears on the wire, e.g. "solana-devnet".
func (c *ServerConfig) NetworkID() string {
	return ChainName + "-" + c.network
}
