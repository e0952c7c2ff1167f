package bootstrap

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"

    "github.com/amirimatin/go-lsf/pkg/security/tlsconfig"
)

// Config is the full runtime configuration. Load fills every field from
// defaults, an optional YAML file and LSF_ environment variables.
type Config struct {
    Log       LogConfig       `mapstructure:"log"`
    Trace     bool            `mapstructure:"trace"`
    Discovery DiscoveryConfig `mapstructure:"discovery"`
    Gossip    GossipConfig    `mapstructure:"gossip"`
    Bus       BusConfig       `mapstructure:"bus"`
    Client    ClientConfig    `mapstructure:"client"`
    Admin     AdminConfig     `mapstructure:"admin"`
    Simulator SimulatorConfig `mapstructure:"simulator"`
}

type LogConfig struct {
    Level string `mapstructure:"level"`
    JSON  bool   `mapstructure:"json"`
}

type DiscoveryConfig struct {
    // Kind is static, dns or file.
    Kind    string        `mapstructure:"kind"`
    Seeds   string        `mapstructure:"seeds"`
    DNS     string        `mapstructure:"dns_names"`
    DNSPort int           `mapstructure:"dns_port"`
    File    string        `mapstructure:"file_path"`
    FileEnv string        `mapstructure:"file_env"`
    Refresh time.Duration `mapstructure:"refresh"`
}

type GossipConfig struct {
    NodeID        string        `mapstructure:"node_id"`
    Bind          string        `mapstructure:"bind"`
    Advertise     string        `mapstructure:"advertise"`
    ProbeInterval time.Duration `mapstructure:"probe_interval"`
    ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
    SuspicionMult int           `mapstructure:"suspicion_mult"`
}

type BusConfig struct {
    DialTimeout  time.Duration `mapstructure:"dial_timeout"`
    ConnTTL      time.Duration `mapstructure:"conn_ttl"`
    LeaveTimeout time.Duration `mapstructure:"leave_timeout"`
}

type ClientConfig struct {
    CallTimeout time.Duration `mapstructure:"call_timeout"`
    EventBuffer int           `mapstructure:"event_buffer"`
}

type AdminConfig struct {
    // Bind is the admin HTTP address; empty disables it.
    Bind string            `mapstructure:"bind"`
    TLS  tlsconfig.Options `mapstructure:"tls"`
}

type SimulatorConfig struct {
    DeviceID      string        `mapstructure:"device_id"`
    DeviceName    string        `mapstructure:"device_name"`
    Lamps         int           `mapstructure:"lamps"`
    Rank          string        `mapstructure:"rank"`
    Bind          string        `mapstructure:"bind"`
    AdvertiseHost string        `mapstructure:"advertise_host"`
    Activity      time.Duration `mapstructure:"activity"`
}

var ErrDiscoveryKind = errors.New("bootstrap: unknown discovery kind")

func setDefaults(v *viper.Viper) {
    v.SetDefault("log.level", "info")
    v.SetDefault("log.json", false)
    v.SetDefault("trace", false)
    v.SetDefault("discovery.kind", "static")
    v.SetDefault("discovery.seeds", "")
    v.SetDefault("discovery.dns_names", "")
    v.SetDefault("discovery.dns_port", 7946)
    v.SetDefault("discovery.file_path", "")
    v.SetDefault("discovery.file_env", "")
    v.SetDefault("discovery.refresh", 5*time.Second)
    v.SetDefault("gossip.node_id", "")
    v.SetDefault("gossip.bind", "0.0.0.0:7946")
    v.SetDefault("gossip.advertise", "")
    v.SetDefault("gossip.probe_interval", time.Duration(0))
    v.SetDefault("gossip.probe_timeout", time.Duration(0))
    v.SetDefault("gossip.suspicion_mult", 0)
    v.SetDefault("bus.dial_timeout", 3*time.Second)
    v.SetDefault("bus.conn_ttl", 30*time.Second)
    v.SetDefault("bus.leave_timeout", time.Second)
    v.SetDefault("client.call_timeout", 25*time.Second)
    v.SetDefault("client.event_buffer", 64)
    v.SetDefault("admin.bind", "127.0.0.1:17947")
    v.SetDefault("simulator.device_id", "lsf-sim")
    v.SetDefault("simulator.device_name", "Simulated Controller")
    v.SetDefault("simulator.lamps", 3)
    v.SetDefault("simulator.rank", "1")
    v.SetDefault("simulator.bind", "0.0.0.0:0")
    v.SetDefault("simulator.advertise_host", "")
    v.SetDefault("simulator.activity", time.Duration(0))
    for _, p := range []string{"admin.tls"} {
        v.SetDefault(p+".enable", false)
        v.SetDefault(p+".ca", "")
        v.SetDefault(p+".cert", "")
        v.SetDefault(p+".key", "")
        v.SetDefault(p+".skip_verify", false)
        v.SetDefault(p+".server_name", "")
        v.SetDefault(p+".reload", time.Duration(0))
    }
}

// NewViper returns a viper instance with defaults and LSF_ environment
// binding, e.g. LSF_GOSSIP_BIND for gossip.bind.
func NewViper() *viper.Viper {
    v := viper.New()
    setDefaults(v)
    v.SetEnvPrefix("LSF")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()
    return v
}

// Load reads path (YAML) when non-empty, otherwise lsf.yaml from the working
// directory or /etc/lsf if present.
func Load(path string) (*Config, error) { return LoadFrom(NewViper(), path) }

// LoadFrom is Load on a caller-provided viper instance, typically one with
// command line flags bound.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
    if path != "" {
        v.SetConfigFile(path)
    } else {
        v.SetConfigName("lsf")
        v.SetConfigType("yaml")
        v.AddConfigPath(".")
        v.AddConfigPath("/etc/lsf")
    }
    if err := v.ReadInConfig(); err != nil {
        var nf viper.ConfigFileNotFoundError
        if path != "" || !errors.As(err, &nf) { return nil, fmt.Errorf("bootstrap: read config: %w", err) }
    }
    cfg := &Config{}
    if err := v.Unmarshal(cfg); err != nil { return nil, fmt.Errorf("bootstrap: decode config: %w", err) }
    if err := cfg.Validate(); err != nil { return nil, err }
    return cfg, nil
}

func (c *Config) Validate() error {
    switch c.Discovery.Kind {
    case "static", "dns", "file":
    default:
        return fmt.Errorf("%w: %q", ErrDiscoveryKind, c.Discovery.Kind)
    }
    if c.Client.CallTimeout < 0 { return errors.New("bootstrap: negative client.call_timeout") }
    return nil
}
