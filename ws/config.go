package ws

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/hixienet"
	"github.com/luciancaetano/hixienet/internal/websocket"
)

// Configuration keys understood by ConfigFromViper.
const (
	KeyHost                = "host"
	KeyPort                = "port"
	KeyPollInterval        = "poll_interval"
	KeyHandshakeTimeout    = "handshake_timeout"
	KeyHandshakeBufferSize = "handshake_buffer_size"
	KeyWriteTimeout        = "write_timeout"
	KeyRateLimitEnabled    = "rate_limit.enabled"
	KeyRateLimitPerSecond  = "rate_limit.messages_per_second"
	KeyRateLimitBurst      = "rate_limit.burst"
)

// SetDefaults registers the package defaults on v. Rate limiting is off; the
// rate and burst defaults apply once it is enabled.
func SetDefaults(v *viper.Viper) {
	rl := websocket.DefaultRateLimitConfig()

	v.SetDefault(KeyHost, hixienet.DefaultHost)
	v.SetDefault(KeyPort, 0)
	v.SetDefault(KeyPollInterval, websocket.DefaultPollInterval)
	v.SetDefault(KeyHandshakeTimeout, websocket.DefaultHandshakeTimeout)
	v.SetDefault(KeyHandshakeBufferSize, websocket.DefaultHandshakeBufferSize)
	v.SetDefault(KeyWriteTimeout, websocket.DefaultWriteTimeout)
	v.SetDefault(KeyRateLimitEnabled, false)
	v.SetDefault(KeyRateLimitPerSecond, float64(rl.MessagesPerSecond))
	v.SetDefault(KeyRateLimitBurst, rl.Burst)
}

// ConfigFromViper reads the server settings out of v. Callbacks and the
// logger are left for the caller to fill in.
func ConfigFromViper(v *viper.Viper) (ServerConfig, error) {
	port := v.GetInt(KeyPort)
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%s: %d out of range", KeyPort, port)
	}

	rl := &RateLimitConfig{
		MessagesPerSecond: rate.Limit(v.GetFloat64(KeyRateLimitPerSecond)),
		Burst:             v.GetInt(KeyRateLimitBurst),
		Enabled:           v.GetBool(KeyRateLimitEnabled),
	}
	if rl.Enabled && (rl.MessagesPerSecond <= 0 || rl.Burst <= 0) {
		return nil, fmt.Errorf("rate limit enabled with rate %v and burst %d", rl.MessagesPerSecond, rl.Burst)
	}

	return &websocket.ServerConfig{
		Host:                v.GetString(KeyHost),
		Port:                port,
		RateLimitConfig:     rl,
		PollInterval:        v.GetDuration(KeyPollInterval),
		HandshakeTimeout:    v.GetDuration(KeyHandshakeTimeout),
		HandshakeBufferSize: v.GetInt(KeyHandshakeBufferSize),
		WriteTimeout:        v.GetDuration(KeyWriteTimeout),
	}, nil
}

// ConfigFromEnv reads the server settings from environment variables named
// PREFIX_HOST, PREFIX_PORT, PREFIX_RATE_LIMIT_BURST and so on. Durations use
// time.ParseDuration syntax.
func ConfigFromEnv(prefix string) (ServerConfig, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return ConfigFromViper(v)
}
