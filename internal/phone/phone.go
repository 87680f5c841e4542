// Package phone checks recipient numbers against the national format: a fixed
// country code followed by exactly nine digits.
package phone

import (
	"regexp"
	"strings"
)

const subscriberDigits = 9

type Pattern struct {
	countryCode string
	re          *regexp.Regexp
}

func NewPattern(countryCode string) Pattern {
	return Pattern{
		countryCode: countryCode,
		re:          regexp.MustCompile(`^` + regexp.QuoteMeta(countryCode) + `\d{9}$`),
	}
}

func (p Pattern) Match(number string) bool {
	return p.re.MatchString(number)
}

// Normalize strips spaces, dashes and a leading '+', and rewrites a local
// 0-prefixed number into international form. It does not validate.
func (p Pattern) Normalize(number string) string {
	n := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(number))
	n = strings.TrimPrefix(n, "+")
	if strings.HasPrefix(n, "0") && len(n) == subscriberDigits+1 {
		n = p.countryCode + n[1:]
	}
	return n
}

func (p Pattern) Example() string {
	return p.countryCode + strings.Repeat("X", subscriberDigits)
}
