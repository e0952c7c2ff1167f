package cli

import (
    "context"
    "errors"
    "fmt"
    "io"
    "sort"
    "strconv"
    "sync"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-lsf/pkg/bootstrap"
    "github.com/amirimatin/go-lsf/pkg/client"
    "github.com/amirimatin/go-lsf/pkg/lamp"
    "github.com/amirimatin/go-lsf/pkg/lsf"
)

var errIncomplete = errors.New("lamp inventory incomplete")

// LampInfo is one row of the lamps listing.
type LampInfo struct {
    ID    string        `json:"id" yaml:"id"`
    Name  string        `json:"name" yaml:"name"`
    State lsf.LampState `json:"state" yaml:"state"`
}

// inventory collects replies for a lamp listing. done is closed once every
// lamp reported its name and state.
type inventory struct {
    lamp.NopCallback

    mu      sync.Mutex
    ids     chan []string
    lamps   map[string]*LampInfo
    waiting int
    done    chan struct{}
    failed  chan error
    acks    chan string
}

func newInventory() *inventory {
    return &inventory{
        ids:    make(chan []string, 1),
        lamps:  make(map[string]*LampInfo),
        done:   make(chan struct{}),
        failed: make(chan error, 1),
        acks:   make(chan string, 1),
    }
}

func (inv *inventory) fail(err error) {
    select {
    case inv.failed <- err:
    default:
    }
}

func (inv *inventory) GetAllLampIDsReplyCB(rc lsf.ResponseCode, ids []string) {
    if rc != lsf.OK {
        inv.fail(fmt.Errorf("GetAllLampIDs: %s", rc))
        return
    }
    select {
    case inv.ids <- ids:
    default:
    }
}

func (inv *inventory) expect(ids []string) {
    inv.mu.Lock()
    defer inv.mu.Unlock()
    for _, id := range ids { inv.lamps[id] = &LampInfo{ID: id} }
    inv.waiting = 2 * len(ids)
    if inv.waiting == 0 { close(inv.done) }
}

func (inv *inventory) got(id string, fn func(*LampInfo)) {
    inv.mu.Lock()
    defer inv.mu.Unlock()
    li, ok := inv.lamps[id]
    if !ok || inv.waiting == 0 { return }
    fn(li)
    inv.waiting--
    if inv.waiting == 0 { close(inv.done) }
}

func (inv *inventory) GetLampNameReplyCB(rc lsf.ResponseCode, id, _, name string) {
    inv.got(id, func(li *LampInfo) {
        if rc == lsf.OK { li.Name = name }
    })
}

func (inv *inventory) GetLampStateReplyCB(rc lsf.ResponseCode, id string, st lsf.LampState) {
    inv.got(id, func(li *LampInfo) {
        if rc == lsf.OK { li.State = st }
    })
}

func (inv *inventory) TransitionLampStateReplyCB(rc lsf.ResponseCode, id string) { inv.ack(rc, id) }

func (inv *inventory) TransitionLampStateFieldReplyCB(rc lsf.ResponseCode, id, _ string) { inv.ack(rc, id) }

func (inv *inventory) ack(rc lsf.ResponseCode, id string) {
    if rc != lsf.OK {
        inv.fail(fmt.Errorf("lamp %s: %s", id, rc))
        return
    }
    select {
    case inv.acks <- id:
    default:
    }
}

func (inv *inventory) list() []LampInfo {
    inv.mu.Lock()
    defer inv.mu.Unlock()
    out := make([]LampInfo, 0, len(inv.lamps))
    for _, li := range inv.lamps { out = append(out, *li) }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out
}

// connectedLamps starts a node with a lamp manager and waits until the client
// joins a controller service.
func connectedLamps(ctx context.Context, cf *configFlags, inv *inventory) (*bootstrap.Node, *lamp.Manager, error) {
    cfg, err := cf.load()
    if err != nil { return nil, nil, err }
    cfg.Admin.Bind = ""
    n, err := bootstrap.Build(*cfg, nil, nil)
    if err != nil { return nil, nil, err }
    m, err := lamp.NewManager(n.Client, inv)
    if err != nil { return nil, nil, err }
    events := n.Client.Subscribe(ctx)
    if err := n.Start(ctx); err != nil {
        n.Close()
        return nil, nil, err
    }
    for {
        select {
        case ev, ok := <-events:
            if !ok {
                n.Close()
                return nil, nil, ctx.Err()
            }
            if ev.Type == client.EventConnected { return n, m, nil }
        case <-ctx.Done():
            n.Close()
            return nil, nil, fmt.Errorf("no controller service found: %w", ctx.Err())
        }
    }
}

func submitted(st client.Status, what string) error {
    if st != client.StatusOK { return fmt.Errorf("%s: %s", what, st) }
    return nil
}

// NewLampsCmd lists lamps, or switches one with the on/off/brightness
// subcommands.
func NewLampsCmd() *cobra.Command {
    var (
        cf       *configFlags
        output   string
        language string
        timeout  time.Duration
    )
    cmd := &cobra.Command{
        Use:   "lamps",
        Short: "List the lamps of the controller service",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            inv := newInventory()
            n, m, err := connectedLamps(ctx, cf, inv)
            if err != nil { return err }
            defer n.Close()

            if err := submitted(m.GetAllLampIDs(), "GetAllLampIDs"); err != nil { return err }
            var ids []string
            select {
            case ids = <-inv.ids:
            case err := <-inv.failed:
                return err
            case <-ctx.Done():
                return fmt.Errorf("%w: %v", errIncomplete, ctx.Err())
            }
            inv.expect(ids)
            for _, id := range ids {
                if err := submitted(m.GetLampName(id, language), "GetLampName"); err != nil { return err }
                if err := submitted(m.GetLampState(id), "GetLampState"); err != nil { return err }
            }
            select {
            case <-inv.done:
            case <-ctx.Done():
                return fmt.Errorf("%w: %v", errIncomplete, ctx.Err())
            }
            lamps := inv.list()
            return write(cmd.OutOrStdout(), output, lamps, func(w io.Writer) {
                for _, l := range lamps {
                    onOff := "off"
                    if l.State.OnOff { onOff = "on" }
                    fmt.Fprintf(w, "%-20s %-24q %-3s brightness=%d hue=%d sat=%d temp=%d\n", l.ID, l.Name, onOff, l.State.Brightness, l.State.Hue, l.State.Saturation, l.State.ColorTemp)
                }
            })
        },
    }
    cf = addConfigFlags(cmd, true)
    cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: json|yaml|text")
    cmd.PersistentFlags().StringVar(&language, "language", "en", "language for lamp names")
    cmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "overall timeout")

    change := func(use, short string, nargs int, do func(m *lamp.Manager, args []string) (client.Status, error)) *cobra.Command {
        sub := &cobra.Command{
            Use:   use,
            Short: short,
            Args:  cobra.ExactArgs(nargs),
            RunE: func(cmd *cobra.Command, args []string) error {
                ctx, cancel := context.WithTimeout(context.Background(), timeout)
                defer cancel()
                inv := newInventory()
                n, m, err := connectedLamps(ctx, cf, inv)
                if err != nil { return err }
                defer n.Close()
                st, err := do(m, args)
                if err != nil { return err }
                if err := submitted(st, use); err != nil { return err }
                select {
                case id := <-inv.acks:
                    fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", id)
                    return nil
                case err := <-inv.failed:
                    return err
                case <-ctx.Done():
                    return ctx.Err()
                }
            },
        }
        return sub
    }
    cmd.AddCommand(change("on ID", "Switch a lamp on", 1, func(m *lamp.Manager, a []string) (client.Status, error) {
        return m.TransitionLampStateOnOffField(a[0], true), nil
    }))
    cmd.AddCommand(change("off ID", "Switch a lamp off", 1, func(m *lamp.Manager, a []string) (client.Status, error) {
        return m.TransitionLampStateOnOffField(a[0], false), nil
    }))
    cmd.AddCommand(change("brightness ID PERCENT", "Set a lamp's brightness", 2, func(m *lamp.Manager, a []string) (client.Status, error) {
        v, err := strconv.ParseUint(a[1], 10, 32)
        if err != nil { return client.StatusErrFailure, fmt.Errorf("brightness: %w", err) }
        return m.TransitionLampStateBrightnessField(a[0], uint32(v), 0), nil
    }))
    return cmd
}
