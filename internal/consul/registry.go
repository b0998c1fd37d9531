package consul

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceName is the name the posts service registers under.
const ServiceName = "posts-service"

// ServiceConfig contains configuration for service registration
type ServiceConfig struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Check   *HealthCheck
}

// HealthCheck defines health check configuration
type HealthCheck struct {
	HTTP     string
	Interval string
	Timeout  string
}

// PostsService describes this instance. The ID is derived from the host so
// a restarted instance replaces its previous entry instead of duplicating it.
func PostsService(host string, port int) *ServiceConfig {
	return &ServiceConfig{
		ID:      fmt.Sprintf("%s-%s", ServiceName, host),
		Name:    ServiceName,
		Address: host,
		Port:    port,
		Tags:    []string{"posts", "comments", "api"},
		Check: &HealthCheck{
			HTTP:     fmt.Sprintf("http://%s:%d/health", host, port),
			Interval: "10s",
			Timeout:  "3s",
		},
	}
}

func (cfg *ServiceConfig) registration() *consulapi.AgentServiceRegistration {
	registration := &consulapi.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: cfg.Address,
		Port:    cfg.Port,
		Tags:    cfg.Tags,
	}

	if cfg.Check != nil {
		registration.Check = &consulapi.AgentServiceCheck{
			HTTP:                           cfg.Check.HTTP,
			Interval:                       cfg.Check.Interval,
			Timeout:                        cfg.Check.Timeout,
			DeregisterCriticalServiceAfter: "1m",
		}
	}

	return registration
}

// Register registers a service with Consul, replacing any stale entry with
// the same ID left behind by a crashed instance.
func (c *Client) Register(cfg *ServiceConfig) error {
	_ = c.api.Agent().ServiceDeregister(cfg.ID)

	if err := c.api.Agent().ServiceRegister(cfg.registration()); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	return nil
}

// Deregister removes a service from Consul
func (c *Client) Deregister(serviceID string) error {
	if err := c.api.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}

	return nil
}
