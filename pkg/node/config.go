// Package node wires together the DHT, router, adapter manager, privacy
// layer, and persistent store into one running peer, and hosts the
// node-level configuration, lifecycle, and background monitoring tasks
// (§5, §6).
package node

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
)

// NodeIdentitySection configures the node's own identity (§6).
type NodeIdentitySection struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Primary bool   `yaml:"primary"`
}

// DHTSection configures the DHT subsystem (§6).
type DHTSection struct {
	Enabled        bool     `yaml:"enabled"`
	BootstrapNodes []string `yaml:"bootstrap_nodes"`
	Port           int      `yaml:"port"`
	CacheMessages  bool     `yaml:"cache_messages"`
	CacheTTLDays   int      `yaml:"cache_ttl_days"`
}

// AdapterSection configures one registered transport adapter (§6).
type AdapterSection struct {
	Enabled   bool   `yaml:"enabled"`
	AutoStart bool   `yaml:"auto_start"`
	Listen    string `yaml:"listen"`
}

// MonitoringSection configures the periodic adapter-health probes (§6,
// supplemented from original_source's ping/throughput/reliability
// interval settings).
type MonitoringSection struct {
	PingIntervalSeconds        int `yaml:"ping_interval_secs"`
	ThroughputIntervalSeconds  int `yaml:"throughput_interval_secs"`
	ReliabilityIntervalSeconds int `yaml:"reliability_interval_secs"`
}

// FailoverSection configures the §4.7 failover supervisor.
type FailoverSection struct {
	AutoFailover               bool    `yaml:"auto_failover"`
	LatencyThresholdMultiplier float64 `yaml:"latency_threshold_multiplier"`
	LossThreshold              float64 `yaml:"loss_threshold"`
	RetryAttempts              int     `yaml:"retry_attempts"`
}

// OverlaySection configures the anonymity-overlay adapter's control-socket
// surface, generalized from the original source's I2P SAM bridge config.
type OverlaySection struct {
	Enabled bool   `yaml:"enabled"`
	SAMHost string `yaml:"sam_host"`
	SAMPort int    `yaml:"sam_port"`
}

// NetworkSection configures transport adapters, monitoring, and failover.
type NetworkSection struct {
	Adapters   map[string]AdapterSection `yaml:"adapters"`
	Monitoring MonitoringSection         `yaml:"monitoring"`
	Failover   FailoverSection           `yaml:"failover"`
	Overlay    OverlaySection            `yaml:"overlay"`
}

// SecuritySection configures message authentication policy (§6).
type SecuritySection struct {
	RequireSignatures bool `yaml:"require_signatures"`
	TrustedNodesOnly  bool `yaml:"trusted_nodes_only"`
}

// RoutingSection configures the router's forwarding policy (§6).
type RoutingSection struct {
	MaxHops         int  `yaml:"max_hops"`
	StoreAndForward bool `yaml:"store_and_forward"`
	MessageTTLDays  int  `yaml:"message_ttl_days"`
}

// Config is the node's typed configuration, the struct the core receives;
// the concrete file format (YAML, here) is external to the core (§6).
type Config struct {
	Node     NodeIdentitySection `yaml:"node"`
	DHT      DHTSection          `yaml:"dht"`
	Network  NetworkSection      `yaml:"network"`
	Security SecuritySection     `yaml:"security"`
	Routing  RoutingSection      `yaml:"routing"`
}

// DefaultConfig returns a Config with the node runtime's defaults applied,
// equivalent to the original source's config.rs::create_default.
func DefaultConfig() Config {
	return Config{
		Node: NodeIdentitySection{
			Name:    defaultNodeName(),
			Primary: true,
		},
		DHT: DHTSection{
			Enabled:       true,
			Port:          0,
			CacheMessages: true,
			CacheTTLDays:  7,
		},
		Network: NetworkSection{
			Adapters: map[string]AdapterSection{
				"ethernet": {Enabled: true, AutoStart: true, Listen: fmt.Sprintf(":%d", constants.DefaultQUICPort)},
			},
			Monitoring: MonitoringSection{
				PingIntervalSeconds:        30,
				ThroughputIntervalSeconds:  60,
				ReliabilityIntervalSeconds: 300,
			},
			Failover: FailoverSection{
				AutoFailover:               true,
				LatencyThresholdMultiplier: 3.0,
				LossThreshold:              0.2,
				RetryAttempts:              3,
			},
		},
		Security: SecuritySection{
			RequireSignatures: true,
		},
		Routing: RoutingSection{
			MaxHops:         32,
			StoreAndForward: true,
			MessageTTLDays:  7,
		},
	}
}

// defaultNodeName generates the "myriad-<hex>" default name used when a
// node's configuration omits one.
func defaultNodeName() string {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "myriad-node"
	}
	return fmt.Sprintf("myriad-%s", hex.EncodeToString(suffix[:]))
}

// LoadConfig reads and parses a YAML configuration file, filling any
// zero-valued section with DefaultConfig's values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("node: read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("node: parse config: %w", err)
	}
	cfg.Node.Name = normalizeNodeName(cfg.Node.Name)
	return cfg, nil
}

// normalizeNodeName trims and NFKC-normalizes a configured node name,
// mirroring the teacher's own handle-normalization convention (trim, NFKC,
// lowercase), and falls back to defaultNodeName when left blank.
func normalizeNodeName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultNodeName()
	}
	return strings.ToLower(norm.NFKC.String(trimmed))
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("node: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("node: write config: %w", err)
	}
	return nil
}

// PingInterval, ThroughputInterval and ReliabilityInterval convert
// MonitoringSection's second-granularity fields into durations used by the
// monitor's tickers.
func (m MonitoringSection) PingInterval() time.Duration {
	return time.Duration(m.PingIntervalSeconds) * time.Second
}

func (m MonitoringSection) ThroughputInterval() time.Duration {
	return time.Duration(m.ThroughputIntervalSeconds) * time.Second
}

func (m MonitoringSection) ReliabilityInterval() time.Duration {
	return time.Duration(m.ReliabilityIntervalSeconds) * time.Second
}
