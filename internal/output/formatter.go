package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/bscott/mailgate/internal/jsonapi"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

type Formatter struct {
	JSON      bool
	Verbose   bool
	Quiet     bool
	NoColor   bool
	Writer    io.Writer
	ErrWriter io.Writer
}

// New writes to stdout. Colors are off when NO_COLOR is set or stdout is
// not a terminal.
func New(jsonOutput, verbose, quiet bool) *Formatter {
	return &Formatter{
		JSON:      jsonOutput,
		Verbose:   verbose,
		Quiet:     quiet,
		NoColor:   !colorEnabled(os.Stdout),
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
	}
}

func colorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Color wraps text in ANSI color codes if colors are enabled
func (f *Formatter) Color(color, text string) string {
	if f.NoColor || f.JSON {
		return text
	}
	return color + text + Reset
}

func (f *Formatter) Bold(text string) string      { return f.Color(Bold, text) }
func (f *Formatter) SuccessText(text string) string { return f.Color(Green, text) }
func (f *Formatter) ErrorText(text string) string   { return f.Color(Red, text) }
func (f *Formatter) WarningText(text string) string { return f.Color(Yellow, text) }
func (f *Formatter) InfoText(text string) string    { return f.Color(Cyan, text) }
func (f *Formatter) MutedText(text string) string   { return f.Color(Gray, text) }

func (f *Formatter) Print(v any) error {
	if f.JSON {
		return f.PrintJSON(v)
	}
	fmt.Fprintln(f.Writer, v)
	return nil
}

func (f *Formatter) PrintJSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *Formatter) PrintError(err error) {
	if f.JSON {
		f.PrintJSON(JSONResponse{Success: false, Error: err.Error()})
		return
	}
	fmt.Fprintf(f.ErrWriter, "%s %s\n", f.ErrorText("Error:"), err)
}

func (f *Formatter) PrintSuccess(message string) {
	if f.Quiet {
		return
	}
	if f.JSON {
		f.PrintJSON(JSONResponse{Success: true, Message: message})
		return
	}
	fmt.Fprintln(f.Writer, f.SuccessText("✓")+" "+message)
}

func (f *Formatter) Verbosef(format string, args ...any) {
	if f.Verbose && !f.Quiet {
		fmt.Fprintln(f.ErrWriter, f.MutedText(fmt.Sprintf(format, args...)))
	}
}

// PrintProblems lists query problems, one per line with the parameter they
// refer to. In JSON mode the problem array is printed as the server would
// return it.
func (f *Formatter) PrintProblems(problems []jsonapi.Problem) error {
	if f.JSON {
		return f.PrintJSON(problems)
	}
	for _, p := range problems {
		line := fmt.Sprintf("%s %s", f.ErrorText(fmt.Sprintf("[%d]", p.Status)), p.Detail)
		if p.AdditionalDetails != nil && p.AdditionalDetails.Parameter != nil {
			param := p.AdditionalDetails.Parameter
			line += f.MutedText(fmt.Sprintf(" (%s=%s)", param.Name, param.Value))
		}
		fmt.Fprintln(f.Writer, line)
	}
	return nil
}

type TableWriter struct {
	w *tabwriter.Writer
}

func (f *Formatter) NewTable(headers ...string) *TableWriter {
	tw := &TableWriter{w: tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)}
	if len(headers) > 0 {
		bold := make([]string, len(headers))
		for i, h := range headers {
			bold[i] = f.Bold(h)
		}
		fmt.Fprintln(tw.w, strings.Join(bold, "\t"))
	}
	return tw
}

func (t *TableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *TableWriter) Flush() {
	t.w.Flush()
}

// TreeNode is one line of a tree printed by PrintTree.
type TreeNode struct {
	Label    string
	Detail   string
	Children []*TreeNode
}

// PrintTree prints nodes indented by depth.
func (f *Formatter) PrintTree(nodes []*TreeNode) {
	var walk func(nodes []*TreeNode, prefix string)
	walk = func(nodes []*TreeNode, prefix string) {
		for i, n := range nodes {
			branch, next := "├── ", "│   "
			if i == len(nodes)-1 {
				branch, next = "└── ", "    "
			}
			line := prefix + branch + n.Label
			if n.Detail != "" {
				line += " " + f.MutedText(n.Detail)
			}
			fmt.Fprintln(f.Writer, line)
			walk(n.Children, prefix+next)
		}
	}
	walk(nodes, "")
}

type JSONResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (f *Formatter) Success(data any) error {
	if f.JSON {
		return f.PrintJSON(JSONResponse{Success: true, Data: data})
	}
	return nil
}

func (f *Formatter) Error(err error) error {
	f.PrintError(err)
	return err
}
