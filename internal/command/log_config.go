package command

import (
	"flag"
	"io"
	"log/slog"

	"github.com/joeycumines/btdsl/internal/config"
	"github.com/joeycumines/btdsl/internal/logging"
)

// logFlags are the logging flags shared by commands that log.
type logFlags struct {
	file   string
	level  string
	format string
}

func (f *logFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.file, "log-file", "", "Write logs to this file, rotated by size (default from config log.file)")
	fs.StringVar(&f.level, "log-level", "", "Log level: debug, info, warn, error (default from config log.level)")
	fs.StringVar(&f.format, "log-format", "", "Log format: text or json (default from config log.format)")
}

// install resolves the flags against cfg and makes the result the default
// slog logger. Without a log file, records go to stderr. The caller must
// close the returned closer.
func (f *logFlags) install(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	opts, err := logging.Resolve(f.file, f.level, f.format, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger, closer, err := logging.New(opts, stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}
