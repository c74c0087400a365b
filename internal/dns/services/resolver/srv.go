package resolver

import (
	"fmt"
	"strings"

	"github.com/haukened/rr-zoned/internal/dns/common/utils"
)

// srvText validates "priority weight port target" content and qualifies the
// target.
func srvText(content string) (string, error) {
	fields := strings.Fields(content)
	if len(fields) != 4 {
		return "", fmt.Errorf("SRV content needs 4 fields, got %d", len(fields))
	}
	fields[3] = utils.Fqdn(fields[3])
	return strings.Join(fields, " "), nil
}
