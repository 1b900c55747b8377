package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sca-tools/bdreport/pkg/hub"
)

// TestNewConnectCmd tests the newConnectCmd function.
func TestNewConnectCmd(t *testing.T) {
	cmd := newConnectCmd()

	if diff := cmp.Diff("connect", cmd.Use); diff != "" {
		t.Errorf("cmd.Use mismatch (-want +got):\n%s", diff)
	}
	if cmd.Flags().Lookup("save-config") == nil {
		t.Errorf("flag save-config should be defined")
	}
}

// TestConnectWithoutConfiguration tests the guidance printed when nothing is configured.
func TestConnectWithoutConfiguration(t *testing.T) {
	t.Setenv("BLACKDUCK_URL", "")
	t.Setenv("BLACKDUCK_API_TOKEN", "")

	cmd := newConnectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()
	if !errors.Is(err, hub.ErrNoConfiguration) {
		t.Fatalf("expected ErrNoConfiguration, got %v", err)
	}
	if !strings.Contains(out.String(), "BLACKDUCK_URL") {
		t.Errorf("expected environment variable guidance, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), hub.RestConfigFile) {
		t.Errorf("expected %s guidance, got:\n%s", hub.RestConfigFile, out.String())
	}
}
