package hangup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emiago/sipgo/sip"
)

// ParseDiversion parses a Diversion header value as a name-addr and returns
// the user part of its URI. For tel: URIs the subscriber number is returned.
// The user part may be empty.
func ParseDiversion(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("empty Diversion header")
	}
	if strings.Contains(value, "<") && !strings.Contains(value, ">") {
		return "", fmt.Errorf("Diversion header %q has an unterminated name-addr", value)
	}

	lower := strings.ToLower(value)
	if !strings.Contains(lower, "sip:") && !strings.Contains(lower, "sips:") {
		if i := strings.Index(lower, "tel:"); i >= 0 {
			return telSubscriber(value[i+len("tel:"):], value)
		}
		return "", fmt.Errorf("Diversion header %q has no SIP or tel URI", value)
	}

	var uri sip.Uri
	if _, err := sip.ParseAddressValue(value, &uri, sip.NewParams()); err != nil {
		return "", fmt.Errorf("parsing Diversion header %q: %w", value, err)
	}
	return uri.User, nil
}

// telSubscriber returns the number of a tel: URI, stopping at its parameters
// or the closing bracket.
func telSubscriber(rest, value string) (string, error) {
	if end := strings.IndexAny(rest, ";>"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", fmt.Errorf("Diversion header %q has an empty tel URI", value)
	}
	return rest, nil
}
