package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sweeney/esl-callbacks/internal/esl"
)

func TestRedact(t *testing.T) {
	in := strings.Join([]string{
		"Caller-Caller-ID-Number: 12125550199",
		"Caller-Destination-Number: %2B12125550100",
		"variable_sip_h_Diversion: %3Csip%3A%2B12125550111%40example.com%3E",
		"variable_sip_auth_password: hunter2",
		"Caller-Network-Addr: 203.0.113.9",
		"FreeSWITCH-IPv4: 127.0.0.1",
		"Core-UUID: 1234567890",
	}, "\n")

	got := redact(in)
	for _, want := range []string{
		"Caller-Caller-ID-Number: 15550001234",
		"Caller-Destination-Number: 15550001234",
		"variable_sip_h_Diversion: %3Csip%3A15550001234%40example.com%3E",
		"variable_sip_auth_password: REDACTED",
		"Caller-Network-Addr: 10.0.0.1",
		"FreeSWITCH-IPv4: 127.0.0.1",
		"Core-UUID: 1234567890",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}

func TestSanitizeFileRewritesContentLength(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", "inbound-hangup.esl"))
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "capture.esl")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		t.Fatalf("writing capture: %v", err)
	}

	if err := sanitizeFile(path); err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("expected backup file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading sanitized capture: %v", err)
	}
	events := esl.ParseBytes(data)
	if len(events) != 3 {
		t.Fatalf("expected 3 events after sanitizing, got %d", len(events))
	}
	if got := events[0].Get(esl.HeaderCallerIDNumber); got != "15550001234" {
		t.Errorf("expected redacted caller number, got %q", got)
	}
	if got := events[2].Get("variable_sip_h_X-Tenant"); got != "acme" {
		t.Errorf("expected untouched tenant header, got %q", got)
	}
}
