package version

import (
	"strings"
	"testing"
)

func TestCurrent(t *testing.T) {
	build := Current()
	if build.Version == "" || build.Commit == "" || build.Date == "" {
		t.Fatalf("build info must have defaults, got %+v", build)
	}
	if build.Version != GetVersion() {
		t.Fatalf("version mismatch: %q vs %q", build.Version, GetVersion())
	}
}

func TestBuildString(t *testing.T) {
	got := Build{Version: "v1.2.0", Commit: "abc123", Date: "2026-01-02"}.String()
	want := "offer-service v1.2.0 (commit abc123, built 2026-01-02)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(""); got != "offer-service/"+GetVersion() {
		t.Errorf("unexpected user agent %q", got)
	}
	if got := UserAgent("inventory"); !strings.HasPrefix(got, "offer-service-inventory/") {
		t.Errorf("unexpected component user agent %q", got)
	}
}
