package base

import (
	"context"

	"github.com/brandonyach/teamworksams/internal/config"
	"github.com/brandonyach/teamworksams/pkg/client"
)

// ClientFlags are the connection flags every command accepts. Flag values
// override the config file, which the environment in turn overrides.
type ClientFlags struct {
	Config   string
	URL      string
	Username string
	Password string
}

// Register adds the connection flags to f.
func (cf *ClientFlags) Register(f *FlagSet) {
	f.StringVar(&cf.Config, "config", "", "Path to a YAML config file.")
	f.StringVar(&cf.URL, "url", "", "AMS instance URL.")
	f.StringVar(&cf.Username, "username", "", "AMS username.")
	f.StringVar(&cf.Password, "password", "", "AMS password.")
}

// Connect loads configuration, builds a client, and logs in.
func (c *Command) Connect(ctx context.Context, cf ClientFlags) (*client.Client, error) {
	cfg, err := config.Load(nil, cf.Config)
	if err != nil {
		return nil, err
	}
	if cf.URL != "" {
		cfg.URL = cf.URL
	}
	if cf.Username != "" {
		cfg.Username = cf.Username
	}
	if cf.Password != "" {
		cfg.Password = cf.Password
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cc := cfg.ClientConfig()
	cc.Logger = c.Log
	cl, err := client.New(cc)
	if err != nil {
		return nil, err
	}
	if err := cl.Login(ctx); err != nil {
		return nil, err
	}
	return cl, nil
}
