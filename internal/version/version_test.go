package version

import (
	"strings"
	"testing"
)

func TestUserAgentIncludesVersion(t *testing.T) {
	ua := UserAgent()
	if !strings.Contains(ua, Version) {
		t.Errorf("UserAgent() = %q, want it to contain %q", ua, Version)
	}
	if !strings.HasPrefix(ua, "AccountingGateway/") {
		t.Errorf("UserAgent() = %q, want AccountingGateway/ prefix", ua)
	}
}

func TestFullVersionIncludesCommitAndBuildTime(t *testing.T) {
	fv := FullVersion()
	for _, want := range []string{Version, GitCommit, BuildTime, GoVersion} {
		if !strings.Contains(fv, want) {
			t.Errorf("FullVersion() = %q, want it to contain %q", fv, want)
		}
	}
}
