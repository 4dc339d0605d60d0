package command

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/btdsl/internal/config"
	"github.com/joeycumines/btdsl/internal/dsl"
	"github.com/joeycumines/btdsl/internal/render"
	"github.com/joeycumines/btdsl/internal/storage"
	"github.com/joeycumines/btdsl/internal/tree"
)

// statusAssignments collects repeated name=STATUS flags, in order.
type statusAssignments []statusAssignment

type statusAssignment struct {
	name   string
	status tree.Status
}

func (a *statusAssignments) String() string {
	parts := make([]string, len(*a))
	for i, s := range *a {
		parts[i] = s.name + "=" + s.status.String()
	}
	return strings.Join(parts, ",")
}

func (a *statusAssignments) Set(v string) error {
	// names may contain '=', so split on the last one
	i := strings.LastIndexByte(v, '=')
	if i <= 0 {
		return fmt.Errorf("expected name=STATUS, got %q", v)
	}
	s, err := tree.ParseStatus(v[i+1:])
	if err != nil {
		return err
	}
	*a = append(*a, statusAssignment{name: strings.TrimSpace(v[:i]), status: s})
	return nil
}

// TickCommand parses or restores a tree, sets statuses and ticks it.
type TickCommand struct {
	*BaseCommand
	config     *config.Config
	conditions statusAssignments
	actions    statusAssignments
	repeat     int
	jsonOut    bool
	restore    string
	save       string
	color      string
	logFlags   logFlags
}

// NewTickCommand creates a new tick command.
func NewTickCommand(cfg *config.Config) *TickCommand {
	return &TickCommand{
		BaseCommand: NewBaseCommand(
			"tick",
			"Tick a behavior tree and show the result",
			"tick [options] <file.tree> | tick [options] -restore <snapshot.json>",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the tick command.
func (c *TickCommand) SetupFlags(fs *flag.FlagSet) {
	fs.Var(&c.conditions, "condition", "Set a condition status, as name=STATUS (repeatable)")
	fs.Var(&c.actions, "action", "Set an action status, as name=STATUS (repeatable)")
	fs.IntVar(&c.repeat, "n", 0, "Number of passes (default from config [tick] repeat)")
	fs.BoolVar(&c.jsonOut, "json", false, "Print the snapshot as JSON instead of a tree")
	fs.StringVar(&c.restore, "restore", "", "Tick a snapshot saved with -save instead of a tree file")
	fs.StringVar(&c.save, "save", "", "Save the snapshot to this path after ticking")
	fs.StringVar(&c.color, "color", "", "Color mode: auto, always, never (default from config color)")
	c.logFlags.register(fs)
}

// Execute ticks the tree.
func (c *TickCommand) Execute(args []string, stdout, stderr io.Writer) error {
	logger, closer, err := c.logFlags.install(c.config, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	t, source, err := c.load(args, stderr)
	if err != nil {
		return err
	}

	for _, a := range c.conditions {
		if t.ConditionStatus(a.name) == tree.NotFound {
			logger.Warn("unknown condition", "name", a.name)
		}
		if err := t.SetConditionStatus(a.name, a.status); err != nil {
			return fmt.Errorf("condition %q: %w", a.name, err)
		}
	}
	for _, a := range c.actions {
		if t.ActionStatus(a.name) == tree.NotFound {
			logger.Warn("unknown action", "name", a.name)
		}
		if err := t.SetActionStatus(a.name, a.status); err != nil {
			return fmt.Errorf("action %q: %w", a.name, err)
		}
	}
	t.OnActionActivation(func(n *tree.Node) {
		if !n.WasActive() {
			logger.Info("action activated", "action", n.Name(), "line", n.Line())
		}
	})

	schema := config.DefaultSchema()
	repeat := c.repeat
	if repeat <= 0 {
		repeat = max(schema.ResolveInt(c.config, "tick", "repeat"), 1)
	}
	for pass := 1; pass <= repeat; pass++ {
		status := t.Tick()
		logger.Debug("tick", "source", source, "pass", pass, "status", status.String(), "active", render.ActivePath(t))
	}

	if c.save != "" {
		if err := storage.SaveSnapshot(c.save, t); err != nil {
			return err
		}
	}

	jsonOut := c.jsonOut || schema.Resolve(c.config, "tick", "format") == "json"
	if jsonOut {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "%s\n", data)
		return nil
	}

	mode := c.color
	if mode == "" {
		mode = schema.Resolve(c.config, "tick", "color")
	}
	color, err := render.ColorMode(mode, stdout)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, render.Tree(t, render.Options{Color: color}))
	return nil
}

func (c *TickCommand) load(args []string, stderr io.Writer) (*tree.BehaviorTree, string, error) {
	if c.restore != "" {
		if len(args) > 0 {
			_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
			return nil, "", fmt.Errorf("unexpected arguments")
		}
		t, err := storage.LoadSnapshot(c.restore)
		return t, c.restore, err
	}
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "expected exactly one tree file")
		return nil, "", fmt.Errorf("invalid arguments")
	}
	path := args[0]
	t, err := dsl.ParseFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := t.Err(); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s:%d: %s\n", path, t.Line(), t.Error())
		slog.Debug("tree failed to parse", "file", path, "error", err)
		return nil, "", err
	}
	return t, path, nil
}
