package discovery

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashboard-core/internal/config"
)

type fakeResolver struct {
	srvName string
	srv     []*net.SRV
	ips     []net.IPAddr
	err     error
}

func (f *fakeResolver) LookupSRV(_ context.Context, _, _, name string) (string, []*net.SRV, error) {
	f.srvName = name
	return "", f.srv, f.err
}

func (f *fakeResolver) LookupIPAddr(context.Context, string) ([]net.IPAddr, error) {
	return f.ips, f.err
}

func TestResolveNodes_EmptyService(t *testing.T) {
	_, err := ResolveNodes(context.Background(), config.DiscoveryConfig{}, &fakeResolver{}, nil)
	assert.Error(t, err)
}

func TestResolveNodes_ARecords(t *testing.T) {
	r := &fakeResolver{ips: []net.IPAddr{
		{IP: net.ParseIP("10.0.0.2")},
		{IP: net.ParseIP("10.0.0.1")},
		{IP: net.ParseIP("10.0.0.2")},
	}}
	nodes, err := ResolveNodes(context.Background(), config.DiscoveryConfig{Service: "valkey.db.svc", Port: 6379}, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:6379", "10.0.0.2:6379"}, nodes)
}

func TestResolveNodes_SRV(t *testing.T) {
	r := &fakeResolver{srv: []*net.SRV{
		{Target: "valkey-1.valkey.db.svc.", Port: 6380},
		{Target: "valkey-0.valkey.db.svc.", Port: 6380},
	}}
	nodes, err := ResolveNodes(context.Background(), config.DiscoveryConfig{Service: "valkey.db.svc", UseSRV: true}, r, nil)
	require.NoError(t, err)
	assert.Equal(t, "_redis._tcp.valkey.db.svc", r.srvName)
	assert.Equal(t, []string{"valkey-0.valkey.db.svc:6380", "valkey-1.valkey.db.svc:6380"}, nodes)
}

func TestResolveNodes_Errors(t *testing.T) {
	_, err := ResolveNodes(context.Background(), config.DiscoveryConfig{Service: "x", Port: 6379}, &fakeResolver{err: errors.New("nxdomain")}, nil)
	assert.ErrorContains(t, err, "nxdomain")

	_, err = ResolveNodes(context.Background(), config.DiscoveryConfig{Service: "x", Port: 6379}, &fakeResolver{}, nil)
	assert.ErrorContains(t, err, "no nodes")
}
