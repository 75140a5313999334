package base

import (
	"strings"

	"attachly/internal/provider"
)

// minSubscriberLen is the shortest national subscriber number accepted after
// normalization (Kenyan mobile numbers carry 9 digits after the country code).
const minSubscriberLen = 9

// NormalizeKE canonicalizes a Kenyan mobile number to 254XXXXXXXXX with no
// leading plus. It accepts local (0712...), bare national (712...),
// international (+254712...) and already-normalized (254712...) forms.
// Adapters that need a leading plus add it themselves.
func NormalizeKE(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	p = strings.TrimPrefix(p, "+")

	switch {
	case strings.HasPrefix(p, "254"):
		// already has country code
	case strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	default:
		p = "254" + p
	}

	subscriber := strings.TrimPrefix(p, "254")
	if len(subscriber) < minSubscriberLen || !allDigits(subscriber) {
		return "", &provider.Error{
			Code:    provider.ErrInvalidPhone,
			Message: "invalid phone number: expected a Kenyan mobile number such as 0712345678",
		}
	}
	return p, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
