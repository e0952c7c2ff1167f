package static

import (
    "context"
    "testing"

    "github.com/amirimatin/go-lsf/pkg/announce"
    "github.com/amirimatin/go-lsf/pkg/bus"
    "github.com/amirimatin/go-lsf/pkg/election"
)

type record struct {
    seen []string
    lost []string
}

func (r *record) sink() announce.Sink {
    return announce.Sink{
        Announce: func(a bus.Announcement) { r.seen = append(r.seen, a.DeviceID) },
        Lost:     func(id string) { r.lost = append(r.lost, id) },
    }
}

func TestReplayInOrderThenForward(t *testing.T) {
    s := New(
        bus.Announcement{DeviceID: "a", Rank: election.Rank{Lo: 1}},
        bus.Announcement{DeviceID: "b", Rank: election.Rank{Lo: 2}},
    )
    s.Announce(bus.Announcement{DeviceID: "a", Rank: election.Rank{Lo: 3}})
    var r record
    if err := s.Start(context.Background(), r.sink()); err != nil { t.Fatalf("start: %v", err) }
    if len(r.seen) != 2 || r.seen[0] != "a" || r.seen[1] != "b" { t.Fatalf("replay = %v", r.seen) }
    if err := s.Start(context.Background(), r.sink()); err != ErrStarted { t.Fatalf("second start err = %v", err) }

    s.Announce(bus.Announcement{DeviceID: "c"})
    s.Withdraw("a")
    s.Withdraw("zzz")
    if len(r.seen) != 3 || r.seen[2] != "c" { t.Fatalf("seen = %v", r.seen) }
    if len(r.lost) != 1 || r.lost[0] != "a" { t.Fatalf("lost = %v", r.lost) }

    _ = s.Stop()
    s.Announce(bus.Announcement{DeviceID: "d"})
    if len(r.seen) != 3 { t.Fatalf("announcement forwarded after stop: %v", r.seen) }
}
