package hangup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDiversion(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"<sip:+15554440000@example.com>;reason=unconditional", "+15554440000", false},
		{"sip:1000@10.0.0.1", "1000", false},
		{`"Sales" <sips:sales@example.com>;counter=1`, "sales", false},
		{"<tel:+15551234567>;reason=unconditional", "+15551234567", false},
		{"tel:5551234;phone-context=example.com", "5551234", false},
		{"<tel:>;reason=unconditional", "", true},
		{"", "", true},
		{"   ", "", true},
		{"tel-only-1555", "", true},
		{"<sip:bob@example.com", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDiversion(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseDiversion(%q) = %q", tt.in, got)
			continue
		}
		if assert.NoError(t, err, "ParseDiversion(%q)", tt.in) {
			assert.Equal(t, tt.want, got, "ParseDiversion(%q)", tt.in)
		}
	}
}
