package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/Iwaschkin/maptoposter/pkg/observability"
)

func TestInstallLogHooks(t *testing.T) {
	t.Cleanup(observability.Reset)

	var buf bytes.Buffer
	installLogHooks(newLogger(&buf, log.DebugLevel))

	ctx := context.Background()
	observability.HTTP().OnRequest(ctx, "POST", "overpass-api.de", "/api/interpreter")
	observability.Cache().OnCacheHit(ctx, "geodata")
	observability.Pipeline().OnRunComplete(ctx, "run-1", true, 0, nil)

	out := buf.String()
	for _, want := range []string{"http request", "overpass-api.de", "cache hit", "type=geodata", "run complete", "run=run-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}
