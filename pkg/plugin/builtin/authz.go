package builtin

import (
	"context"
	"fmt"

	"github.com/dirgate/dirgate/pkg/authz"
	"github.com/dirgate/dirgate/pkg/hooks"
	"github.com/dirgate/dirgate/pkg/plugin"
)

func init() {
	plugin.RegisterFactory("authz", newAuthzPlugin)
}

// authzOverrides is the descriptor override surface for the authz
// plugin. All fields are optional and shadow the global configuration.
type authzOverrides struct {
	Mode      string `json:"mode,omitempty"`
	TablePath string `json:"table_path,omitempty"`
	FailOpen  *bool  `json:"fail_open,omitempty"`
}

// authzPlugin installs the branch permission engine on the directory
// operation hooks.
type authzPlugin struct {
	engine *authz.Engine
	cancel context.CancelFunc
}

func newAuthzPlugin(env plugin.Env) (plugin.Plugin, error) {
	var overrides authzOverrides
	if err := env.DecodeOverrides(&overrides); err != nil {
		return nil, err
	}

	cfg := env.Config.Authz
	if overrides.Mode != "" {
		cfg.Mode = overrides.Mode
	}
	if overrides.TablePath != "" {
		cfg.TablePath = overrides.TablePath
	}
	if overrides.FailOpen != nil {
		cfg.FailOpen = *overrides.FailOpen
	}

	searcher := env.Client.Conn()
	var resolver authz.Resolver
	var cancel context.CancelFunc

	switch cfg.Mode {
	case "static":
		table, err := authz.LoadTable(cfg.TablePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load permission table: %w", err)
		}
		static := authz.NewStaticResolver(table, searcher, cfg.TopAnchor, cfg.GroupCacheTTL, env.Log)
		if cfg.WatchTable {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				if err := authz.WatchTable(ctx, cfg.TablePath, static, env.Log); err != nil && ctx.Err() == nil {
					env.Log.WithError(err).Error("permission table watcher stopped")
				}
			}()
		}
		resolver = static
	case "attribute":
		resolver = authz.NewAttributeResolver(searcher, cfg.TopAnchor,
			cfg.OrgLinkAttr, cfg.OrgClass, cfg.AttributeCacheTTL, env.Log)
	default:
		return nil, fmt.Errorf("unknown authorization mode %q", cfg.Mode)
	}

	engine, err := authz.NewEngine(resolver, searcher, authz.Config{
		TopAnchor:   cfg.TopAnchor,
		OrgLinkAttr: cfg.OrgLinkAttr,
		FailOpen:    cfg.FailOpen,
	}, env.Log)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, err
	}

	return &authzPlugin{engine: engine, cancel: cancel}, nil
}

func (p *authzPlugin) Name() string { return "authz" }

func (p *authzPlugin) Hooks() map[string]hooks.Handler {
	return p.engine.Hooks()
}

// Close stops the table watcher, if one is running.
func (p *authzPlugin) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
