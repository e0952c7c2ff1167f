package static

import (
    "context"

    "github.com/amirimatin/go-lsf/pkg/discovery"
)

type staticSeeds struct {
    seeds []string
}

func (s *staticSeeds) Seeds(context.Context) ([]string, error) { return append([]string(nil), s.seeds...), nil }

// New returns a Discovery that always yields the given seeds.
func New(seeds ...string) discovery.Discovery {
    return &staticSeeds{seeds: discovery.Normalize(seeds)}
}

// Parse builds a Discovery from a comma separated list.
func Parse(csv string) discovery.Discovery { return New(discovery.SplitList(csv)...) }
