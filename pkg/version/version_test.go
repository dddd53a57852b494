package version

import (
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abcdef"}
	want := "Version: 1.2.3-rc1\nBuild: abcdef"
	if s := v.String(); s != want {
		t.Errorf("got %q expected %q", s, want)
	}
	if s := MemvizVersion.String(); !strings.HasPrefix(s, "Version: 0.3.0") {
		t.Errorf("unexpected version %q", s)
	}
}
