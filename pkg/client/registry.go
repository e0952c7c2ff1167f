package client

import (
    "fmt"
    "sort"
)

// EntityType tags the typed manager responsible for one LSF interface.
type EntityType string

const (
    EntityControllerService EntityType = "controller_service"
    EntityLamp              EntityType = "lamp"
    EntityLampGroup         EntityType = "lamp_group"
    EntityPreset            EntityType = "preset"
    EntityScene             EntityType = "scene"
    EntityMasterScene       EntityType = "master_scene"
)

// Manager is implemented by the typed facades. SignalHandlers is called on
// registration and again on every Start.
type Manager interface {
    EntityType() EntityType
    SignalHandlers() []SignalHandler
}

// Register adds m as the only manager for its entity type. Registering a
// second manager for a type fails with ErrManagerRegistered.
func (c *Client) Register(m Manager) error {
    hs := m.SignalHandlers()
    for _, h := range hs {
        if !h.valid() { return fmt.Errorf("client: invalid signal handler %s.%s for %s", h.Interface, h.Member, m.EntityType()) }
    }
    c.mgrs.mu.Lock()
    defer c.mgrs.mu.Unlock()
    if _, ok := c.mgrs.m[m.EntityType()]; ok {
        return fmt.Errorf("%w: %s", ErrManagerRegistered, m.EntityType())
    }
    c.mgrs.m[m.EntityType()] = m
    if c.running() {
        for _, h := range hs { _ = c.router.register(h) }
    }
    return nil
}

// Unregister removes the manager for t and its signal handlers.
func (c *Client) Unregister(t EntityType) {
    c.mgrs.mu.Lock()
    defer c.mgrs.mu.Unlock()
    m, ok := c.mgrs.m[t]
    if !ok { return }
    delete(c.mgrs.m, t)
    for _, h := range m.SignalHandlers() {
        c.router.unregister(h.Interface, h.Member)
    }
}

// installSignalHandlers fills the router from every registered manager.
func (c *Client) installSignalHandlers() error {
    c.mgrs.mu.Lock()
    defer c.mgrs.mu.Unlock()
    for _, m := range c.mgrs.m {
        for _, h := range m.SignalHandlers() {
            if err := c.router.register(h); err != nil { return err }
        }
    }
    return nil
}

func (c *Client) managerNames() []string {
    c.mgrs.mu.Lock()
    defer c.mgrs.mu.Unlock()
    out := make([]string, 0, len(c.mgrs.m))
    for t := range c.mgrs.m { out = append(out, string(t)) }
    sort.Strings(out)
    return out
}
