package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"

    lsfcli "github.com/amirimatin/go-lsf/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "lsfctl:", err)
        os.Exit(1)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "lsfctl",
        Short:         "Lighting controller client CLI",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    lsfcli.AddAll(root)
    return root
}
