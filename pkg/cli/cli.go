// Package cli provides the cobra commands behind lsfctl so services can
// embed them in their own command tree.
package cli

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"
    "github.com/spf13/viper"
    "go.uber.org/zap"
    "gopkg.in/yaml.v3"

    "github.com/amirimatin/go-lsf/pkg/admin"
    "github.com/amirimatin/go-lsf/pkg/bootstrap"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/security/tlsconfig"
)

// AddAll attaches run, status, lamps and simulate to root.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewLampsCmd())
    root.AddCommand(NewSimulateCmd())
}

// configFlags registers the flags shared by commands that assemble a node
// and binds them over the config file and environment.
type configFlags struct {
    v    *viper.Viper
    path string
}

func addConfigFlags(cmd *cobra.Command, persistent bool) *configFlags {
    cf := &configFlags{v: bootstrap.NewViper()}
    f := cmd.Flags()
    if persistent { f = cmd.PersistentFlags() }
    f.StringVar(&cf.path, "config", "", "path to a YAML config file (default ./lsf.yaml or /etc/lsf/lsf.yaml)")
    f.String("log-level", "info", "log level: debug|info|warn|error")
    f.Bool("log-json", false, "JSON log output")
    f.Bool("trace", false, "enable OpenTelemetry stdout tracing (dev)")
    f.String("discovery", "static", "seed discovery backend: static|dns|file")
    f.String("join", "", "comma separated gossip seeds (host:port), discovery=static")
    f.String("dns-names", "", "comma separated DNS or SRV names, discovery=dns")
    f.String("file-path", "", "seed file or glob, discovery=file")
    f.String("gossip-bind", "0.0.0.0:7946", "gossip bind address (host:port)")
    f.String("gossip-adv", "", "gossip advertise address (host:port)")
    f.String("node-id", "", "gossip node name (default generated)")
    f.Duration("call-timeout", client.DefaultCallTimeout, "method call timeout")
    for key, flag := range map[string]string{
        "log.level":           "log-level",
        "log.json":            "log-json",
        "trace":               "trace",
        "discovery.kind":      "discovery",
        "discovery.seeds":     "join",
        "discovery.dns_names": "dns-names",
        "discovery.file_path": "file-path",
        "gossip.bind":         "gossip-bind",
        "gossip.advertise":    "gossip-adv",
        "gossip.node_id":      "node-id",
        "client.call_timeout": "call-timeout",
    } {
        _ = cf.v.BindPFlag(key, f.Lookup(flag))
    }
    return cf
}

func (cf *configFlags) bind(key string, cmd *cobra.Command, flag string) {
    _ = cf.v.BindPFlag(key, cmd.Flags().Lookup(flag))
}

func (cf *configFlags) load() (*bootstrap.Config, error) { return bootstrap.LoadFrom(cf.v, cf.path) }

// NewRunCmd runs a client until interrupted, logging lifecycle events.
func NewRunCmd() *cobra.Command {
    var cf *configFlags
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run a controller client with the admin endpoint",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := cf.load()
            if err != nil { return err }
            ctx, cancel := signalContext()
            defer cancel()
            n, err := bootstrap.Build(*cfg, nil, nil)
            if err != nil { return err }
            events := n.Client.Subscribe(ctx)
            if err := n.Start(ctx); err != nil { return err }
            defer n.Close()
            if n.Admin != nil { fmt.Fprintf(cmd.OutOrStdout(), "admin endpoint on %s\n", n.Admin.Addr()) }
            for ev := range events {
                n.Log.Info("event", zap.String("type", string(ev.Type)), zap.String("device", ev.DeviceID), zap.String("name", ev.DeviceName), zap.Any("errors", ev.Errors))
            }
            return nil
        },
    }
    cf = addConfigFlags(cmd, false)
    cmd.Flags().String("admin-addr", "127.0.0.1:17947", "admin HTTP address; empty disables it")
    cf.bind("admin.bind", cmd, "admin-addr")
    return cmd
}

// NewStatusCmd fetches /status from a running client.
func NewStatusCmd() *cobra.Command {
    var (
        addr, output string
        timeout      time.Duration
        topts        tlsconfig.Options
    )
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch client status from its admin endpoint",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            ac := admin.NewClient(timeout)
            tcfg, err := topts.Client()
            if err != nil { return fmt.Errorf("tls client config: %w", err) }
            ac.UseTLS(tcfg)
            st, err := ac.GetStatus(ctx, addr)
            if err != nil { return fmt.Errorf("status error: %w", err) }
            return write(cmd.OutOrStdout(), output, st, func(w io.Writer) {
                fmt.Fprintf(w, "state:    %s\n", st.State)
                if st.Leader != nil {
                    fmt.Fprintf(w, "leader:   %s (%s) rank %s at %s\n", st.Leader.DeviceID, st.Leader.DeviceName, st.Leader.Rank, st.Leader.BusAddress)
                }
                if st.Joining != "" { fmt.Fprintf(w, "joining:  %s\n", st.Joining) }
                for _, c := range st.Candidates {
                    fmt.Fprintf(w, "candidate %s (%s) rank %s\n", c.DeviceID, c.DeviceName, c.Rank)
                }
                fmt.Fprintf(w, "pending:  %d\n", st.PendingCalls)
            })
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:17947", "admin address of a running client (host:port)")
    cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json|yaml|text")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    cmd.Flags().BoolVar(&topts.Enable, "tls-enable", false, "use https")
    cmd.Flags().StringVar(&topts.CAFile, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&topts.CertFile, "tls-cert", "", "path to client certificate (PEM)")
    cmd.Flags().StringVar(&topts.KeyFile, "tls-key", "", "path to client private key (PEM)")
    cmd.Flags().BoolVar(&topts.InsecureSkipVerify, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&topts.ServerName, "tls-server-name", "", "expected server name")
    return cmd
}

// NewSimulateCmd runs a simulated controller service.
func NewSimulateCmd() *cobra.Command {
    var cf *configFlags
    cmd := &cobra.Command{
        Use:   "simulate",
        Short: "Run a simulated controller service announced over gossip",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := cf.load()
            if err != nil { return err }
            log, err := bootstrap.Logger(cfg.Log)
            if err != nil { return err }
            defer log.Sync()
            ctx, cancel := signalContext()
            defer cancel()
            srv, err := bootstrap.RunSimulator(ctx, *cfg, log)
            if err != nil { return err }
            a := srv.Announcement()
            fmt.Fprintf(cmd.OutOrStdout(), "controller service %s at %s:%d, gossip %s\n", a.DeviceID, a.BusAddress, a.Port, srv.GossipAddr())
            return srv.Run(ctx)
        },
    }
    cf = addConfigFlags(cmd, false)
    cmd.Flags().String("device-id", "lsf-sim", "controller service device id")
    cmd.Flags().String("device-name", "Simulated Controller", "controller service name")
    cmd.Flags().Int("lamps", 3, "number of simulated lamps")
    cmd.Flags().String("rank", "1", "election rank as hi:lo or lo")
    cmd.Flags().String("bind", "0.0.0.0:0", "gRPC bind address")
    cmd.Flags().String("advertise-host", "", "host announced to clients")
    cmd.Flags().Duration("activity", 0, "toggle a lamp every interval (0 disables)")
    cf.bind("simulator.device_id", cmd, "device-id")
    cf.bind("simulator.device_name", cmd, "device-name")
    cf.bind("simulator.lamps", cmd, "lamps")
    cf.bind("simulator.rank", cmd, "rank")
    cf.bind("simulator.bind", cmd, "bind")
    cf.bind("simulator.advertise_host", cmd, "advertise-host")
    cf.bind("simulator.activity", cmd, "activity")
    return cmd
}

// write renders v as json or yaml, or calls text for "text".
func write(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
    switch format {
    case "json", "":
        enc := json.NewEncoder(w)
        enc.SetIndent("", "  ")
        return enc.Encode(v)
    case "yaml":
        enc := yaml.NewEncoder(w)
        enc.SetIndent(2)
        if err := enc.Encode(v); err != nil { return err }
        return enc.Close()
    case "text":
        text(w)
        return nil
    }
    return fmt.Errorf("unknown output format %q", format)
}

func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
