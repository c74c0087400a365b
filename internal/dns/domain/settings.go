package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Keys of the persisted settings map.
const (
	SettingListenAddr = "listen_addr"
	SettingListenPort = "listen_port"
	SettingUpstream   = "upstream"
	SettingDefaultTTL = "default_ttl"
)

// Settings are the runtime options read by the DNS listener each time it starts.
// ListenPort 0 asks the OS for an ephemeral port.
type Settings struct {
	ListenAddr string `json:"listen_addr" validate:"required,ip"`
	ListenPort int    `json:"listen_port" validate:"gte=0,lte=65535"`
	Upstream   string `json:"upstream" validate:"omitempty,host_port"`
	DefaultTTL uint32 `json:"default_ttl"`
}

// DefaultSettings returns the values seeded into an empty store.
func DefaultSettings() Settings {
	return Settings{ListenAddr: "0.0.0.0", ListenPort: 5353, DefaultTTL: 300}
}

// Address is the host:port the listener binds to.
func (s Settings) Address() string {
	return net.JoinHostPort(s.ListenAddr, strconv.Itoa(s.ListenPort))
}

// Normalize trims the addresses and gives an upstream without a port port 53,
// the same way stored settings are read back.
func (s Settings) Normalize() Settings {
	s.ListenAddr = strings.TrimSpace(s.ListenAddr)
	s.Upstream = normalizeUpstream(s.Upstream)
	return s
}

// Validate checks the settings, wrapping failures in ErrInvalidSettings.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// ToMap renders settings as the string map kept by the store.
func (s Settings) ToMap() map[string]string {
	return map[string]string{
		SettingListenAddr: s.ListenAddr,
		SettingListenPort: strconv.Itoa(s.ListenPort),
		SettingUpstream:   s.Upstream,
		SettingDefaultTTL: strconv.FormatUint(uint64(s.DefaultTTL), 10),
	}
}

// ParseSettings builds Settings from the stored map. Missing keys take their
// default. An upstream without a port is given port 53.
func ParseSettings(m map[string]string) (Settings, error) {
	s := DefaultSettings()
	if v, ok := m[SettingListenAddr]; ok && strings.TrimSpace(v) != "" {
		s.ListenAddr = strings.TrimSpace(v)
	}
	if v, ok := m[SettingListenPort]; ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Settings{}, fmt.Errorf("%w: listen_port %q", ErrInvalidSettings, v)
		}
		s.ListenPort = port
	}
	if v, ok := m[SettingUpstream]; ok {
		s.Upstream = normalizeUpstream(v)
	}
	if v, ok := m[SettingDefaultTTL]; ok && strings.TrimSpace(v) != "" {
		ttl, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: default_ttl %q", ErrInvalidSettings, v)
		}
		s.DefaultTTL = uint32(ttl)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func normalizeUpstream(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(v); err == nil {
		return v
	}
	return net.JoinHostPort(strings.Trim(v, "[]"), "53")
}
