package pinger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string]string

func (m mapStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStore) Set(key, value string) error {
	m[key] = value
	return nil
}

func withHostID(t *testing.T, fn func(context.Context) (string, error)) {
	t.Helper()
	orig := hostID
	hostID = fn
	t.Cleanup(func() { hostID = orig })
}

func TestMachineID_PrefersHostID(t *testing.T) {
	withHostID(t, func(context.Context) (string, error) { return " host-123 \n", nil })
	st := mapStore{}

	id, err := MachineID(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "host-123", id)
	assert.Empty(t, st, "nothing is stored when the host id works")
}

func TestMachineID_FallbackIsGeneratedOnce(t *testing.T) {
	withHostID(t, func(context.Context) (string, error) { return "", errors.New("unsupported") })
	st := mapStore{}

	first, err := MachineID(context.Background(), st)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	assert.NoError(t, err)

	second, err := MachineID(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first, st[KeyMachineID])
}

func TestPing_SendsMachineID(t *testing.T) {
	var (
		gotID string
		gotUA string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.URL.Query().Get("machine_id")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.URL+"/v1/node/ping", "abc", 15*time.Minute, nil)
	require.NoError(t, p.doPing(context.Background()))

	assert.Equal(t, "abc", gotID)
	assert.Equal(t, "oscnode/dev", gotUA)
}

func TestPing_ErrorsAreSwallowed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(srv.URL, "abc", time.Minute, nil)
	assert.Error(t, p.doPing(context.Background()))
	assert.NotPanics(t, func() { p.Ping(context.Background()) })
	assert.Equal(t, int32(2), hits.Load())

	unreachable := New("http://127.0.0.1:1/ping", "abc", time.Minute, nil)
	assert.NotPanics(t, func() { unreachable.Ping(context.Background()) })
}

func TestJob(t *testing.T) {
	p := New("http://example.com", "abc", 15*time.Minute, nil)
	job := p.Job()

	assert.Equal(t, "ping", job.Name)
	assert.Equal(t, 15*time.Minute, job.Interval)
	assert.Zero(t, job.InitialDelay)
	assert.NotNil(t, job.Run)
}
