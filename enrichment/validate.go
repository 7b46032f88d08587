package enrichment

import "github.com/go-playground/validator/v10"

// DefaultTokenRule describes a well-formed ipinfo access token.
const DefaultTokenRule = "required,alphanum,len=14"

var validate = validator.New()

// ValidToken reports whether token satisfies DefaultTokenRule.
func ValidToken(token string) bool {
	return validToken(token, DefaultTokenRule)
}

// validToken treats a malformed rule as a failed check; validator panics on
// unknown tags.
func validToken(token, rule string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return validate.Var(token, rule) == nil
}

// ValidIP reports whether ip is an IPv4 or IPv6 literal.
func ValidIP(ip string) bool {
	return IsIPv4(ip) || IsIPv6(ip)
}

func IsIPv4(ip string) bool {
	return validate.Var(ip, "required,ipv4") == nil
}

func IsIPv6(ip string) bool {
	return validate.Var(ip, "required,ipv6") == nil
}
