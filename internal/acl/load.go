package acl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentsql/bridge/pkg/models"
)

// LoadConfig reads the declarative ACL document from path: default policy,
// superuser tags, public tool names, and the per-tool ACL mapping.
func LoadConfig(path string) (models.ACLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ACLConfig{}, fmt.Errorf("acl: read config: %w", err)
	}

	var cfg models.ACLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.ACLConfig{}, fmt.Errorf("acl: parse config: %w", err)
	}
	if cfg.DefaultPolicy == "" {
		cfg.DefaultPolicy = models.PolicyDeny
	}
	return cfg, nil
}
