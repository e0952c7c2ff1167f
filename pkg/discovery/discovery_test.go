package discovery

import (
    "context"
    "errors"
    "testing"
)

func TestSplitList(t *testing.T) {
    cases := []struct {
        in   string
        want []string
    }{
        {"", nil},
        {"a:1", []string{"a:1"}},
        {" b:2 , a:1 ", []string{"a:1", "b:2"}},
        {",,a:1, ,a:1,", []string{"a:1"}},
    }
    for _, c := range cases {
        got := SplitList(c.in)
        if len(got) != len(c.want) {
            t.Fatalf("len mismatch for %q: got %v want %v", c.in, got, c.want)
        }
        for i := range got {
            if got[i] != c.want[i] { t.Fatalf("[%q] item %d: got %q want %q", c.in, i, got[i], c.want[i]) }
        }
    }
}

func TestMergeKeepsSeedsOfHealthySources(t *testing.T) {
    boom := errors.New("boom")
    d := Merge(
        Func(func(context.Context) ([]string, error) { return []string{"b:2", "a:1"}, nil }),
        nil,
        Func(func(context.Context) ([]string, error) { return nil, boom }),
        Func(func(context.Context) ([]string, error) { return []string{"a:1", "c:3"}, nil }),
    )
    got, err := d.Seeds(context.Background())
    if !errors.Is(err, boom) { t.Fatalf("err = %v, want boom", err) }
    if len(got) != 3 || got[0] != "a:1" || got[1] != "b:2" || got[2] != "c:3" {
        t.Fatalf("seeds = %v", got)
    }
}
