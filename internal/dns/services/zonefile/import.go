package zonefile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/haukened/rr-zoned/internal/dns/common/utils"
	"github.com/haukened/rr-zoned/internal/dns/domain"
)

// ErrImportParse is returned when a master file has no usable origin or SOA,
// or a line cannot be interpreted.
var ErrImportParse = errors.New("zone file parse error")

// ImportOptions supplies the defaults applied to the imported zone.
type ImportOptions struct {
	// Now seeds the serial when the SOA tuple is missing or malformed.
	Now time.Time
	// DefaultTTL is used when the file has no $TTL directive.
	DefaultTTL uint32
}

// Imported is a parsed master file, ready to be stored as one unit.
type Imported struct {
	Zone    domain.Zone
	Records []domain.Record
	// Skipped lists the lines whose type is outside the storable set.
	Skipped []string
}

type parser struct {
	opts      ImportOptions
	origin    string
	ttl       uint32
	lastOwner string
	soa       *domain.Zone
	out       Imported
}

// Import parses a master file. Record TTLs are not carried over: every
// imported record inherits the zone TTL.
func Import(r io.Reader, opts ImportOptions) (Imported, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	p := &parser{opts: opts}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}
		var err error
		switch {
		case strings.HasPrefix(trimmed, "$"):
			err = p.directive(trimmed)
		case lineType(line) == domain.RRTypeSOA:
			err = p.soaLine(line, scanner, &lineNum)
		default:
			err = p.recordLine(line)
		}
		if err != nil {
			return Imported{}, fmt.Errorf("%w: line %d: %v", ErrImportParse, lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Imported{}, fmt.Errorf("%w: %v", ErrImportParse, err)
	}

	if p.origin == "" {
		return Imported{}, fmt.Errorf("%w: no origin", ErrImportParse)
	}
	if p.soa == nil {
		return Imported{}, fmt.Errorf("%w: no SOA record", ErrImportParse)
	}

	z := *p.soa
	z.Name = p.origin
	z.TTL = p.ttl
	p.out.Zone = z.WithDefaults(opts.DefaultTTL, opts.Now)
	return p.out, nil
}

func (p *parser) directive(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("directive %s needs a value", fields[0])
	}
	switch strings.ToUpper(fields[0]) {
	case "$ORIGIN":
		p.origin = utils.ZoneName(fields[1])
	case "$TTL":
		ttl, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid $TTL %q", fields[1])
		}
		p.ttl = uint32(ttl)
	}
	return nil
}

// soaLine reads the SOA record, following a parenthesized tuple onto later
// lines. A tuple with fewer than five numbers leaves the defaults in place.
func (p *parser) soaLine(line string, scanner *bufio.Scanner, lineNum *int) error {
	text := stripComment(line)
	if strings.Contains(text, "(") {
		for !strings.Contains(text, ")") && scanner.Scan() {
			*lineNum++
			text += " " + stripComment(scanner.Text())
		}
	}
	text = strings.NewReplacer("(", " ", ")", " ").Replace(text)
	fields := strings.Fields(text)

	idx := indexOf(fields, "SOA")
	if idx < 0 || idx+2 >= len(fields) {
		return errors.New("SOA needs a primary nameserver and a mailbox")
	}
	if idx > 0 && !startsBlank(line) {
		owner := fields[0]
		if owner != "@" && strings.HasSuffix(owner, ".") && p.origin == "" {
			p.origin = utils.ZoneName(owner)
		}
		if owner == "@" && p.origin == "" {
			return errors.New("@ used before $ORIGIN")
		}
	}

	soa := domain.Zone{
		PrimaryNS:  p.qualify(fields[idx+1]),
		AdminEmail: p.qualify(fields[idx+2]),
	}
	var nums []uint32
	for _, f := range fields[idx+3:] {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			break
		}
		nums = append(nums, uint32(n))
	}
	if len(nums) >= 5 {
		soa.Serial, soa.Refresh, soa.Retry, soa.Expire, soa.Minimum = nums[0], nums[1], nums[2], nums[3], nums[4]
	}
	p.soa = &soa
	return nil
}

// recordLine parses "owner [ttl] [class] TYPE [priority] content". A line
// starting with whitespace reuses the previous owner.
func (p *parser) recordLine(line string) error {
	fields := strings.Fields(line)
	owner := p.lastOwner
	rest := fields
	if !startsBlank(line) {
		owner, rest = fields[0], fields[1:]
	}
	if owner == "" {
		return errors.New("record without an owner")
	}
	if owner == "@" && p.origin == "" {
		return errors.New("@ used before $ORIGIN")
	}
	if p.origin == "" && !strings.HasSuffix(owner, ".") {
		return fmt.Errorf("relative owner %q before $ORIGIN", owner)
	}
	p.lastOwner = owner

	ti, rrtype := typeIndex(rest)
	if ti < 0 || !rrtype.IsRecordType() {
		p.out.Skipped = append(p.out.Skipped, strings.TrimSpace(line))
		return nil
	}

	// skip counts the tokens that precede the content on the raw line.
	skip := len(fields) - len(rest) + ti + 1
	data := rest[ti+1:]
	rec := domain.Record{
		Name: utils.Qualify(owner, p.origin),
		Type: rrtype,
	}
	if rrtype.HasPriority() {
		if len(data) < 2 {
			return fmt.Errorf("%s needs a priority and content", rrtype)
		}
		prio, err := strconv.ParseUint(data[0], 10, 16)
		if err != nil {
			return fmt.Errorf("invalid %s priority %q", rrtype, data[0])
		}
		rec.Priority = domain.Priority(uint16(prio))
		if rrtype == domain.RRTypeMX {
			data = data[1:]
			skip++
		}
	}
	if len(data) == 0 {
		return fmt.Errorf("%s record without content", rrtype)
	}
	rec.Content = strings.TrimSpace(skipFields(line, skip))
	p.out.Records = append(p.out.Records, rec)
	return nil
}

func (p *parser) qualify(name string) string {
	if strings.HasSuffix(name, ".") || p.origin == "" {
		return utils.ZoneName(name)
	}
	return utils.Qualify(name, p.origin)
}

// typeIndex finds the type mnemonic among the tokens that follow the owner,
// skipping TTL and class tokens.
func typeIndex(fields []string) (int, domain.RRType) {
	for i, f := range fields {
		if t := domain.RRTypeFromString(f); t != 0 && !isClass(f) {
			return i, t
		}
	}
	return -1, 0
}

func lineType(line string) domain.RRType {
	fields := strings.Fields(stripComment(line))
	if !startsBlank(line) && len(fields) > 0 {
		fields = fields[1:]
	}
	_, t := typeIndex(fields)
	return t
}

// skipFields returns line after its first n whitespace separated tokens,
// keeping the spacing of what remains.
func skipFields(line string, n int) string {
	for ; n > 0; n-- {
		line = strings.TrimLeft(line, " \t")
		i := strings.IndexAny(line, " \t")
		if i < 0 {
			return ""
		}
		line = line[i:]
	}
	return line
}

func indexOf(fields []string, token string) int {
	for i, f := range fields {
		if strings.EqualFold(f, token) {
			return i
		}
	}
	return -1
}

func stripComment(line string) string {
	if i := strings.Index(line, ";"); i >= 0 {
		return line[:i]
	}
	return line
}

func startsBlank(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}

func isClass(token string) bool {
	switch strings.ToUpper(token) {
	case "IN", "CH", "HS", "CS":
		return true
	}
	return false
}
