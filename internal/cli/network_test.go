package cli

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/grantcarthew/webctl/internal/telemetry"
)

func int64p(v int64) *int64 { return &v }

func sampleNetwork() []telemetry.NetworkRequest {
	base := time.Now()
	return []telemetry.NetworkRequest{
		{RequestID: "1", URL: "https://example.com/", Method: "GET", ResourceType: network.ResourceTypeDocument, StatusCode: int64p(200), Timestamp: base},
		{RequestID: "2", URL: "https://example.com/api/users", Method: "GET", ResourceType: network.ResourceTypeXHR, StatusCode: int64p(404), Timestamp: base},
		{RequestID: "3", URL: "https://example.com/api/orders", Method: "POST", ResourceType: network.ResourceTypeXHR, StatusCode: int64p(500), Timestamp: base},
		{RequestID: "4", URL: "https://example.com/style.css", Method: "GET", ResourceType: network.ResourceTypeStylesheet, StatusCode: int64p(200), Timestamp: base},
		{RequestID: "5", URL: "https://example.com/broken", Method: "GET", Failed: true, ErrorText: "net::ERR_FAILED", Timestamp: base},
	}
}

func TestParseStatusPatterns(t *testing.T) {
	matchers, err := parseStatusPatterns([]string{"200", "4xx", "500-599"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matchers) != 3 {
		t.Fatalf("expected 3 matchers, got %d", len(matchers))
	}

	if !matchers[0].matches(200) || matchers[0].matches(201) {
		t.Fatalf("exact matcher behaved unexpectedly: %+v", matchers[0])
	}
	if !matchers[1].matches(404) || matchers[1].matches(500) {
		t.Fatalf("4xx matcher behaved unexpectedly: %+v", matchers[1])
	}
	if !matchers[2].matches(500) || !matchers[2].matches(599) || matchers[2].matches(600) {
		t.Fatalf("range matcher behaved unexpectedly: %+v", matchers[2])
	}

	if _, err := parseStatusPatterns([]string{"9xx"}); err == nil {
		t.Fatal("expected error for out-of-range xx pattern")
	}
	if _, err := parseStatusPatterns([]string{"abc"}); err == nil {
		t.Fatal("expected error for non-numeric pattern")
	}
}

func TestFilterNetworkEntries(t *testing.T) {
	entries := sampleNetwork()

	got := filterNetworkEntries(entries, nil, nil, networkFilterOptions{types: []string{"XHR"}})
	if len(got) != 2 {
		t.Fatalf("expected 2 XHR entries, got %d", len(got))
	}

	got = filterNetworkEntries(entries, nil, nil, networkFilterOptions{methods: []string{"POST"}})
	if len(got) != 1 || got[0].RequestID != "3" {
		t.Fatalf("expected single POST entry, got %v", got)
	}

	statusMatchers, _ := parseStatusPatterns([]string{"4xx", "5xx"})
	got = filterNetworkEntries(entries, nil, statusMatchers, networkFilterOptions{})
	if len(got) != 2 {
		t.Fatalf("expected 2 error-status entries, got %d", len(got))
	}

	got = filterNetworkEntries(entries, nil, nil, networkFilterOptions{failed: true})
	if len(got) != 1 || got[0].RequestID != "5" {
		t.Fatalf("expected single failed entry, got %v", got)
	}
}

func TestFilterNetworkByText(t *testing.T) {
	entries := sampleNetwork()
	got := filterNetworkByText(entries, "api/users")
	if len(got) != 1 || got[0].RequestID != "2" {
		t.Fatalf("expected single match, got %v", got)
	}
}

func TestApplyNetworkLimiting(t *testing.T) {
	entries := sampleNetwork()

	head, err := applyNetworkLimiting(entries, 2, 0, "")
	if err != nil || len(head) != 2 {
		t.Fatalf("head: got %v, err %v", head, err)
	}

	tail, err := applyNetworkLimiting(entries, 0, 2, "")
	if err != nil || len(tail) != 2 || tail[1].RequestID != "5" {
		t.Fatalf("tail: got %v, err %v", tail, err)
	}
}
