package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/haukened/rr-zoned/internal/dns/common/utils"
)

// SOA timer defaults applied to zones created without explicit values.
const (
	DefaultRefresh uint32 = 3600
	DefaultRetry   uint32 = 600
	DefaultExpire  uint32 = 86400
	DefaultMinimum uint32 = 300
)

// Zone is an authoritative domain with its SOA metadata. Name is canonical
// (lowercase, trailing dot) and unique across the store.
type Zone struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name" validate:"required,dnsname"`
	TTL        uint32 `json:"ttl"`
	PrimaryNS  string `json:"primary_ns" validate:"required,dnsname"`
	AdminEmail string `json:"admin_email" validate:"required,dnsname"`
	Serial     uint32 `json:"serial"`
	Refresh    uint32 `json:"refresh"`
	Retry      uint32 `json:"retry"`
	Expire     uint32 `json:"expire"`
	Minimum    uint32 `json:"minimum"`
}

// Normalize canonicalizes the names held by the zone. The admin email is
// accepted in mailbox form ("admin@example.com") and stored as a domain name.
func (z Zone) Normalize() Zone {
	z.Name = utils.ZoneName(z.Name)
	if z.PrimaryNS != "" {
		z.PrimaryNS = utils.ZoneName(z.PrimaryNS)
	}
	if z.AdminEmail != "" {
		z.AdminEmail = utils.ZoneName(strings.Replace(z.AdminEmail, "@", ".", 1))
	}
	return z
}

// WithDefaults fills unset metadata: ns1.<zone>, admin.<zone>, a serial from
// now, the standard SOA timers and defaultTTL.
func (z Zone) WithDefaults(defaultTTL uint32, now time.Time) Zone {
	z = z.Normalize()
	if z.PrimaryNS == "" && z.Name != "" {
		z.PrimaryNS = "ns1." + z.Name
	}
	if z.AdminEmail == "" && z.Name != "" {
		z.AdminEmail = "admin." + z.Name
	}
	if z.TTL == 0 {
		z.TTL = defaultTTL
	}
	if z.Serial == 0 {
		z.Serial = uint32(now.Unix())
	}
	if z.Refresh == 0 {
		z.Refresh = DefaultRefresh
	}
	if z.Retry == 0 {
		z.Retry = DefaultRetry
	}
	if z.Expire == 0 {
		z.Expire = DefaultExpire
	}
	if z.Minimum == 0 {
		z.Minimum = DefaultMinimum
	}
	return z
}

// Validate checks zone metadata, wrapping failures in ErrInvalidZone.
func (z Zone) Validate() error {
	if err := validate.Struct(z); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidZone, err)
	}
	return nil
}

// SOAText renders the synthesized SOA RDATA in presentation form.
func (z Zone) SOAText() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d",
		utils.Fqdn(z.PrimaryNS), utils.Fqdn(z.AdminEmail),
		z.Serial, z.Refresh, z.Retry, z.Expire, z.Minimum)
}

// Contains reports whether name is the zone apex or lies beneath it.
func (z Zone) Contains(name string) bool {
	return utils.IsSubdomain(name, z.Name)
}
