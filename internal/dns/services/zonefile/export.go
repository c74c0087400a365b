// Package zonefile converts zones to and from BIND master file text.
package zonefile

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/haukened/rr-zoned/internal/dns/common/utils"
	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// Export writes z and its records as a master file. Records are ordered by
// owner name then type mnemonic. Each record line carries its effective TTL.
func Export(w io.Writer, z domain.Zone, records []domain.Record) error {
	sorted := make([]domain.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Type.String() < sorted[j].Type.String()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "$ORIGIN %s\n", z.Name)
	fmt.Fprintf(&b, "$TTL %d\n", z.TTL)
	fmt.Fprintf(&b, "@ IN SOA %s %s ( %d %d %d %d %d )\n",
		utils.Fqdn(z.PrimaryNS), utils.Fqdn(z.AdminEmail),
		z.Serial, z.Refresh, z.Retry, z.Expire, z.Minimum)

	for _, r := range sorted {
		fmt.Fprintf(&b, "%s %d IN %s %s\n", ownerLabel(r.Name, z.Name), r.EffectiveTTL(z.TTL), r.Type, exportContent(r))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// ExportString is Export into a string.
func ExportString(z domain.Zone, records []domain.Record) string {
	var b strings.Builder
	_ = Export(&b, z, records)
	return b.String()
}

func ownerLabel(name, origin string) string {
	if utils.CanonicalDNSName(name) == utils.CanonicalDNSName(origin) {
		return "@"
	}
	return name
}

// exportContent prefixes the priority for MX. Complete SRV content already
// starts with its priority field and is written as stored, like the answer
// served for it.
func exportContent(r domain.Record) string {
	switch r.Type {
	case domain.RRTypeMX:
		return fmt.Sprintf("%d %s", r.EffectivePriority(), r.Content)
	case domain.RRTypeSRV:
		if len(strings.Fields(r.Content)) == 4 {
			return r.Content
		}
		return fmt.Sprintf("%d %s", r.EffectivePriority(), r.Content)
	default:
		return r.Content
	}
}
