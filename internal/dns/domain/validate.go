package domain

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	RegisterValidations(v)
	return v
}

// RegisterValidations adds the custom tags used by domain types to v:
//
//	dnsname    a presentation-format domain name (underscores and a leading "*" label allowed)
//	host_port  "host:port" where host is empty, an IP literal or a dnsname
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("dnsname", func(fl validator.FieldLevel) bool {
		return isDNSName(fl.Field().String())
	})
	_ = v.RegisterValidation("host_port", func(fl validator.FieldLevel) bool {
		return isHostPort(fl.Field().String())
	})
}

func isDNSName(name string) bool {
	if name == "." {
		return true
	}
	name = strings.TrimSuffix(name, ".")
	if name == "" || len(name) > 253 {
		return false
	}
	for i, label := range strings.Split(name, ".") {
		if label == "*" && i == 0 {
			continue
		}
		if label == "" || len(label) > 63 {
			return false
		}
		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

func isHostPort(s string) bool {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return false
	}
	if host == "" || net.ParseIP(host) != nil {
		return true
	}
	return isDNSName(host)
}
