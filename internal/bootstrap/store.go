// Package bootstrap assembles the runtime pieces shared by the server and
// the command line tools: the record store for a configuration and the
// demo dashboard seed.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/internal/discovery"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
	"github.com/platformbuilds/dashboard-core/pkg/store"
)

// OpenStore builds the record store named by cfg.Backend. With auto swap
// the process starts on the in-memory store and moves to Valkey once it
// answers, carrying the dashboard records over. With DNS discovery the
// cluster nodes are resolved once, before connecting.
func OpenStore(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (store.RecordStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch cfg.Backend {
	case config.BackendMemory, "":
		return store.NewMemoryStore(log), nil
	case config.BackendBolt:
		return store.NewBoltStore(cfg.BoltPath)
	case config.BackendValkey:
		v := cfg.Valkey
		if v.Discovery.Enabled {
			nodes, err := discovery.ResolveNodes(ctx, v.Discovery, nil, log)
			if err != nil {
				return nil, err
			}
			v.Nodes = nodes
		}
		if cfg.AutoSwap {
			fallback := store.NewMemoryStore(log)
			if len(v.Nodes) > 0 {
				return store.NewAutoSwapForCluster(v.Nodes, v.Password, log, fallback, repo.DashboardsKey), nil
			}
			return store.NewAutoSwapForSingle(v.Addr, v.DB, v.Password, log, fallback, repo.DashboardsKey), nil
		}
		if len(v.Nodes) > 0 {
			return store.NewValkeyCluster(v.Nodes, v.Password)
		}
		return store.NewValkeySingle(v.Addr, v.DB, v.Password)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
