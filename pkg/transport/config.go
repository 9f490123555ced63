package transport

import (
	"flag"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/flagext"
)

// Config configures the transport channel.
type Config struct {
	// Addr is the host:port of the execution service.
	Addr string
	// UseTLS enables transport security. Transport-level security details
	// beyond the switch are owned by the dialer.
	UseTLS bool
	// BearerToken is attached as an authorization header on every call when
	// set.
	BearerToken flagext.Secret
	// MaxRecvMsgSize bounds the size of a single inbound message. Oversize
	// messages surface as MessageTooLargeError, never as a crash.
	MaxRecvMsgSize datasize.ByteSize
	// DialTimeout bounds one connection attempt.
	DialTimeout time.Duration
	// ReadTimeout bounds the wait for one response on a stream. It applies
	// per attempt, separate from the retry budget: a slow response fails only
	// its own read.
	ReadTimeout time.Duration
	// Backoff bounds reattach attempts after retryable transport failures.
	Backoff backoff.Config
}

// RegisterFlags registers transport flags with the default prefix.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("transport.", f)
}

// RegisterFlagsWithPrefix registers transport flags with a custom prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Addr, prefix+"addr", "localhost:15002", "Address of the execution service.")
	f.BoolVar(&cfg.UseTLS, prefix+"tls-enabled", false, "Enable TLS for the connection.")
	f.Var(&cfg.BearerToken, prefix+"bearer-token", "Bearer credential attached to every call.")
	cfg.MaxRecvMsgSize = 64 * datasize.MB
	f.TextVar(&cfg.MaxRecvMsgSize, prefix+"max-recv-msg-size", cfg.MaxRecvMsgSize, "Maximum size of a single inbound message.")
	f.DurationVar(&cfg.DialTimeout, prefix+"dial-timeout", 10*time.Second, "Timeout for one connection attempt.")
	f.DurationVar(&cfg.ReadTimeout, prefix+"read-timeout", 0, "Timeout for one response read on a stream. 0 disables it.")
	cfg.Backoff.RegisterFlagsWithPrefix(prefix+"backoff.", f)
}
