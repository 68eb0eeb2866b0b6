// Package pinger reports the machine to the project server on a fixed
// interval. Pings are fire-and-forget: failures are logged and dropped.
package pinger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/opensourcecitizen/oscnode/internal/buildinfo"
	"github.com/opensourcecitizen/oscnode/internal/scheduler"
)

const (
	// KeyMachineID is the settings key of the generated fallback machine id.
	KeyMachineID = "machine_id"

	// requestTimeout is the HTTP timeout of a single ping.
	requestTimeout = 10 * time.Second
)

// Store is the part of the settings store used for the fallback id.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// hostID is replaced in tests.
var hostID = host.HostIDWithContext

// MachineID returns a stable identifier for this machine: the OS host id
// when available, else a random UUID generated once and kept in st.
func MachineID(ctx context.Context, st Store) (string, error) {
	if id, err := hostID(ctx); err == nil && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id), nil
	}

	if id, ok := st.Get(KeyMachineID); ok && id != "" {
		return id, nil
	}

	id := uuid.New().String()
	if err := st.Set(KeyMachineID, id); err != nil {
		return id, fmt.Errorf("storing machine id: %w", err)
	}
	return id, nil
}

// Pinger sends the periodic machine ping.
type Pinger struct {
	client    *http.Client
	pingURL   string
	machineID string
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Pinger.
func New(pingURL, machineID string, interval time.Duration, logger *zap.Logger) *Pinger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pinger{
		client: &http.Client{
			Timeout: requestTimeout,
		},
		pingURL:   pingURL,
		machineID: machineID,
		interval:  interval,
		logger:    logger.Named("pinger"),
	}
}

// Job returns the ping job to register with a scheduler. The first ping
// goes out as soon as the scheduler starts.
func (p *Pinger) Job() scheduler.Job {
	return scheduler.Job{
		Name:     "ping",
		Interval: p.interval,
		Timeout:  requestTimeout,
		Run:      p.Ping,
	}
}

// Ping sends a single ping, logging any failure at debug level.
func (p *Pinger) Ping(ctx context.Context) {
	if err := p.doPing(ctx); err != nil {
		p.logger.Debug("Ping failed", zap.Error(err))
		return
	}
	p.logger.Debug("Ping sent")
}

func (p *Pinger) doPing(ctx context.Context) error {
	u, err := url.Parse(p.pingURL)
	if err != nil {
		return fmt.Errorf("parse ping url: %w", err)
	}
	q := u.Query()
	q.Set("machine_id", p.machineID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "oscnode/"+buildinfo.Version)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
