package app

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/qpstream/pkg/config"
)

type staticProvider struct {
	cfg *config.ConfigData
}

func (p staticProvider) LoadConfig() (*config.ConfigData, error) { return p.cfg, nil }
func (p staticProvider) IsReadOnly() bool                        { return true }
func (p staticProvider) Close() error                            { return nil }

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.ListenAddr = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "runs.db")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(staticProvider{cfg: cfg}, zap.NewNop().Sugar()).Run(ctx)
	}()

	url := "http://127.0.0.1:" + strconv.Itoa(cfg.Server.Port) + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Simulation.SampleRateHz = -1
	err := New(staticProvider{cfg: cfg}, zap.NewNop().Sugar()).Run(context.Background())
	assert.Error(t, err)
}
