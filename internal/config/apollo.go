package config

import (
	"strconv"

	agollo "github.com/apolloconfig/agollo/v4"
	apconf "github.com/apolloconfig/agollo/v4/env/config"
	"github.com/apolloconfig/agollo/v4/storage"
)

// overrideFromApollo starts Apollo client and overrides config values if present.
// Returns a closer to stop the Apollo client.
func overrideFromApollo(cfg *Config, store *Store) (func(), error) {
	if cfg.Apollo.Addrs == "" || cfg.Apollo.AppID == "" {
		configLogger.Warn("apollo: missing APOLLO_ADDRS or APOLLO_APP_ID; skip")
		return nil, nil
	}

	ns := cfg.Apollo.Namespace
	if ns == "" {
		ns = "application"
	}

	appCfg := &apconf.AppConfig{
		AppID:         cfg.Apollo.AppID,
		Cluster:       cfg.Apollo.Cluster,
		NamespaceName: ns,
		IP:            cfg.Apollo.Addrs, // comma separated
		Secret:        cfg.Apollo.AccessKey,
	}

	client, err := agollo.StartWithConfig(func() (*apconf.AppConfig, error) { return appCfg, nil })
	if err != nil {
		return nil, err
	}

	applyApolloOverrides(client, ns, cfg)
	_ = store.UpdateValidated(cfg, map[string]bool{"apollo.init": true})

	client.AddChangeListener(&changeListener{ns: ns, client: client, store: store})

	// agollo v4 exposes no Stop.
	return func() {}, nil
}

// overridable lists the keys Apollo may change at runtime and how each lands in Config.
var overridable = map[string]func(cfg *Config, v string){
	"app.env":              func(cfg *Config, v string) { cfg.AppEnv = v },
	"server.addr":          func(cfg *Config, v string) { cfg.Server.Addr = v },
	"log.level":            func(cfg *Config, v string) { cfg.Log.Level = v },
	"log.format":           func(cfg *Config, v string) { cfg.Log.Format = v },
	"pg.url":               func(cfg *Config, v string) { cfg.PG.URL = v },
	"pg.max_open":          func(cfg *Config, v string) { setInt(&cfg.PG.MaxOpenConns, v) },
	"pg.max_idle":          func(cfg *Config, v string) { setInt(&cfg.PG.MaxIdleConns, v) },
	"redis.addr":           func(cfg *Config, v string) { cfg.Redis.Addr = v },
	"redis.db":             func(cfg *Config, v string) { setInt(&cfg.Redis.DB, v) },
	"mq.url":               func(cfg *Config, v string) { cfg.MQ.URL = v },
	"es.addrs":             func(cfg *Config, v string) { cfg.ES.Addrs = v },
	"es.username":          func(cfg *Config, v string) { cfg.ES.Username = v },
	"ratelimit.window_sec": func(cfg *Config, v string) { setInt(&cfg.RateLimit.WindowSec, v) },
	"ratelimit.max":        func(cfg *Config, v string) { setInt(&cfg.RateLimit.Max, v) },
}

// secrets may legitimately be set to an empty string.
var secrets = map[string]func(cfg *Config, v string){
	"redis.password": func(cfg *Config, v string) { cfg.Redis.Password = v },
	"es.password":    func(cfg *Config, v string) { cfg.ES.Password = v },
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func applyApolloOverrides(client agollo.Client, namespace string, cfg *Config) {
	cache := client.GetConfigCache(namespace)
	if cache == nil {
		return
	}
	applyValues(cfg, func(key string) (string, bool) {
		v, err := cache.Get(key)
		if err != nil {
			return "", false
		}
		s, ok := v.(string)
		return s, ok
	})
}

// applyValues is split from the Apollo cache so the mapping can be tested without a server.
func applyValues(cfg *Config, lookup func(key string) (string, bool)) {
	for key, set := range overridable {
		if v, ok := lookup(key); ok && v != "" {
			set(cfg, v)
		}
	}
	for key, set := range secrets {
		if v, ok := lookup(key); ok {
			set(cfg, v)
		}
	}
}

type changeListener struct {
	ns     string
	client agollo.Client
	store  *Store
}

func (c *changeListener) OnChange(e *storage.ChangeEvent) {
	configLogger.Sugar().Infof("apollo change: namespace=%s, changes=%d", e.Namespace, len(e.Changes))
	next := cloneConfig(c.store.Get())
	applyApolloOverrides(c.client, c.ns, next)
	changed := map[string]bool{}
	for k := range e.Changes {
		changed[k] = true
	}
	if !c.store.UpdateValidated(next, changed) {
		configLogger.Warn("apollo change rejected by validators")
	}
}

func (c *changeListener) OnNewestChange(e *storage.FullChangeEvent) {
	configLogger.Sugar().Debugf("apollo snapshot: namespace=%s, keys=%d", e.Namespace, len(e.Changes))
}
