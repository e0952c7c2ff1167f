package election

import (
    "sort"
    "time"
)

// Entry is one announced controller service.
type Entry struct {
    DeviceID    string    `json:"deviceId"`
    DeviceName  string    `json:"deviceName"`
    BusAddress  string    `json:"busAddress"`
    Port        uint16    `json:"port"`
    Rank        Rank      `json:"rank"`
    AnnouncedAt time.Time `json:"announcedAt"`

    seq uint64
}

// Outranks reports whether e takes precedence over o: higher rank first, then
// the earlier announcement, then the earlier insertion.
func (e Entry) Outranks(o Entry) bool {
    if c := e.Rank.Compare(o.Rank); c != 0 { return c > 0 }
    if !e.AnnouncedAt.Equal(o.AnnouncedAt) { return e.AnnouncedAt.Before(o.AnnouncedAt) }
    return e.seq < o.seq
}

// Table holds the known candidates, at most one per device ID. It is not
// safe for concurrent use; the owner guards it.
type Table struct {
    byDevice map[string]Entry
    seq      uint64
}

func NewTable() *Table { return &Table{byDevice: make(map[string]Entry)} }

// Record inserts or overwrites the entry for e.DeviceID and returns the stored
// copy. A re-announcement with the same rank keeps its first-seen time so an
// incumbent does not lose ties by announcing again.
func (t *Table) Record(e Entry) Entry {
    if e.AnnouncedAt.IsZero() { e.AnnouncedAt = time.Now() }
    if prev, ok := t.byDevice[e.DeviceID]; ok {
        e.seq = prev.seq
        if prev.Rank == e.Rank { e.AnnouncedAt = prev.AnnouncedAt }
    } else {
        t.seq++
        e.seq = t.seq
    }
    t.byDevice[e.DeviceID] = e
    return e
}

// Remove deletes the candidate for deviceID and reports whether it existed.
func (t *Table) Remove(deviceID string) bool {
    if _, ok := t.byDevice[deviceID]; !ok { return false }
    delete(t.byDevice, deviceID)
    return true
}

func (t *Table) Get(deviceID string) (Entry, bool) {
    e, ok := t.byDevice[deviceID]
    return e, ok
}

// Leader returns the candidate with the highest precedence.
func (t *Table) Leader() (Entry, bool) {
    var best Entry
    found := false
    for _, e := range t.byDevice {
        if !found || e.Outranks(best) {
            best = e
            found = true
        }
    }
    return best, found
}

// Entries lists all candidates, best first.
func (t *Table) Entries() []Entry {
    out := make([]Entry, 0, len(t.byDevice))
    for _, e := range t.byDevice { out = append(out, e) }
    sort.Slice(out, func(i, j int) bool { return out[i].Outranks(out[j]) })
    return out
}

func (t *Table) Len() int { return len(t.byDevice) }

// Reset drops every candidate.
func (t *Table) Reset() {
    t.byDevice = make(map[string]Entry)
}
