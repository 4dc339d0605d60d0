package command

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/joeycumines/btdsl/internal/config"
	"github.com/joeycumines/btdsl/internal/dsl"
)

// errCheckFailed is returned when at least one file fails to parse.
var errCheckFailed = errors.New("check failed")

type checkResult struct {
	File       string   `json:"file"`
	OK         bool     `json:"ok"`
	Line       int      `json:"line,omitempty"`
	Error      string   `json:"error,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
	Actions    []string `json:"actions,omitempty"`
}

// CheckCommand parses tree files and reports syntax errors.
type CheckCommand struct {
	*BaseCommand
	config *config.Config
	format string
}

// NewCheckCommand creates a new check command.
func NewCheckCommand(cfg *config.Config) *CheckCommand {
	return &CheckCommand{
		BaseCommand: NewBaseCommand(
			"check",
			"Parse tree files and report syntax errors",
			"check [options] <file.tree>...",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the check command.
func (c *CheckCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", "", "Output format: text or json (default from config [check] format)")
}

// Execute parses every file. Each failure is reported as file:line: message.
func (c *CheckCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "no tree files given")
		return fmt.Errorf("missing arguments")
	}
	format := c.format
	if format == "" {
		format = config.DefaultSchema().Resolve(c.config, "check", "format")
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format: %s", format)
	}

	results := make([]checkResult, 0, len(args))
	failed := false
	for _, path := range args {
		res := checkResult{File: path}
		t, err := dsl.ParseFile(path)
		switch {
		case err != nil:
			res.Error = err.Error()
		case t.Err() != nil:
			res.Line = t.Line()
			res.Error = t.Error()
			slog.Debug("tree failed to parse", "file", path, "line", t.Line(), "error", t.Error())
		default:
			res.OK = true
			res.Conditions = t.Conditions()
			res.Actions = t.Actions()
		}
		failed = failed || !res.OK
		results = append(results, res)
	}

	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			switch {
			case res.OK:
				_, _ = fmt.Fprintf(stdout, "%s: ok (%d conditions, %d actions)\n", res.File, len(res.Conditions), len(res.Actions))
			case res.Line > 0:
				_, _ = fmt.Fprintf(stderr, "%s:%d: %s\n", res.File, res.Line, res.Error)
			default:
				_, _ = fmt.Fprintf(stderr, "%s: %s\n", res.File, res.Error)
			}
		}
	}

	if failed {
		return errCheckFailed
	}
	return nil
}
