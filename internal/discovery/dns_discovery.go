// Package discovery resolves Valkey cluster nodes from DNS, so a cluster
// behind a Kubernetes headless service can be configured by name.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// Resolver is the subset of *net.Resolver used here.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ResolveNodes turns cfg into host:port node addresses, de-duplicated and
// sorted. With UseSRV the _redis._tcp SRV records of the service are
// used; otherwise every A/AAAA record of the service gets cfg.Port.
func ResolveNodes(ctx context.Context, cfg config.DiscoveryConfig, r Resolver, log logger.Logger) ([]string, error) {
	if r == nil {
		r = net.DefaultResolver
	}
	if log == nil {
		log = logger.NewNop()
	}
	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		return nil, fmt.Errorf("discovery service name is empty")
	}

	var out []string
	if cfg.UseSRV {
		name := service
		if !strings.HasPrefix(name, "_") {
			name = "_redis._tcp." + name
		}
		_, addrs, err := r.LookupSRV(ctx, "", "", name)
		if err != nil {
			return nil, fmt.Errorf("lookup SRV %s: %w", name, err)
		}
		for _, a := range addrs {
			out = append(out, net.JoinHostPort(strings.TrimSuffix(a.Target, "."), strconv.Itoa(int(a.Port))))
		}
	} else {
		ips, err := r.LookupIPAddr(ctx, service)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", service, err)
		}
		for _, ip := range ips {
			out = append(out, net.JoinHostPort(ip.IP.String(), strconv.Itoa(cfg.Port)))
		}
	}

	// de-duplicate + stable order
	seen := make(map[string]struct{}, len(out))
	uniq := make([]string, 0, len(out))
	for _, e := range out {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		uniq = append(uniq, e)
	}
	sort.Strings(uniq)

	if len(uniq) == 0 {
		return nil, fmt.Errorf("DNS discovery resolved no nodes for %s", service)
	}
	log.Info("Valkey nodes discovered", "service", service, "nodes", len(uniq))
	return uniq, nil
}
