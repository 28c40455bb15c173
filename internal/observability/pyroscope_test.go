package observability

import (
	"testing"

	"github.com/riskibarqy/playerstats-ingest/internal/config"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

func TestInitPyroscope_Disabled(t *testing.T) {
	stop, err := InitPyroscope(config.Config{PyroscopeEnabled: false}, logging.NewNop())
	if err != nil {
		t.Fatalf("init pyroscope: %v", err)
	}
	if err := stop(); err != nil {
		t.Fatalf("stop pyroscope: %v", err)
	}
}
