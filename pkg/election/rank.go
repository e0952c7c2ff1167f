package election

import (
    "fmt"
    "strconv"
    "strings"
)

// Rank orders controller services for leader selection. Hi is compared
// first, then Lo; the higher rank wins.
type Rank struct {
    Hi uint64 `json:"hi"`
    Lo uint64 `json:"lo"`
}

// Compare returns -1, 0 or +1 when r is lower than, equal to or higher than o.
func (r Rank) Compare(o Rank) int {
    switch {
    case r.Hi < o.Hi:
        return -1
    case r.Hi > o.Hi:
        return 1
    case r.Lo < o.Lo:
        return -1
    case r.Lo > o.Lo:
        return 1
    }
    return 0
}

func (r Rank) Less(o Rank) bool { return r.Compare(o) < 0 }

func (r Rank) IsZero() bool { return r.Hi == 0 && r.Lo == 0 }

// String renders the rank as "hi:lo".
func (r Rank) String() string { return fmt.Sprintf("%d:%d", r.Hi, r.Lo) }

// ParseRank accepts "hi:lo" or a bare "lo".
func ParseRank(s string) (Rank, error) {
    s = strings.TrimSpace(s)
    if s == "" { return Rank{}, fmt.Errorf("election: empty rank") }
    hi, lo, found := strings.Cut(s, ":")
    if !found {
        v, err := strconv.ParseUint(hi, 10, 64)
        if err != nil { return Rank{}, fmt.Errorf("election: invalid rank %q: %w", s, err) }
        return Rank{Lo: v}, nil
    }
    h, err := strconv.ParseUint(hi, 10, 64)
    if err != nil { return Rank{}, fmt.Errorf("election: invalid rank %q: %w", s, err) }
    l, err := strconv.ParseUint(lo, 10, 64)
    if err != nil { return Rank{}, fmt.Errorf("election: invalid rank %q: %w", s, err) }
    return Rank{Hi: h, Lo: l}, nil
}
