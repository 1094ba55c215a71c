package main

import (
	"strings"
	"sync"

	"hlsforge/internal/config"
)

type commandContext struct {
	addressFlag *string
	configFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addressFlag, configFlag *string) *commandContext {
	return &commandContext{
		addressFlag: addressFlag,
		configFlag:  configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiAddress resolves the daemon address from the --address flag or the
// configured API bind.
func (c *commandContext) apiAddress() (string, error) {
	if c.addressFlag != nil {
		if addr := strings.TrimSpace(*c.addressFlag); addr != "" {
			return addr, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.Paths.APIBind, nil
}

func (c *commandContext) client() (*apiClient, error) {
	addr, err := c.apiAddress()
	if err != nil {
		return nil, err
	}
	return newAPIClient(addr)
}
