package cli

import (
	"fmt"
	"runtime"
)

// VersionCmd shows version information
type VersionCmd struct{}

func (c *VersionCmd) Run(ctx *Context) error {
	if ctx.Formatter.JSON {
		return ctx.Formatter.PrintJSON(map[string]any{
			"name":       "mailgate",
			"version":    Version,
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		})
	}

	out := ctx.Formatter.Writer
	fmt.Fprintf(out, "mailgate version %s\n", Version)
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}
