package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeycumines/btdsl/internal/storage"
)

// SetKeyInFile updates or adds an option in the config file, preserving
// comments and the order of everything else. An empty section targets the
// global block. A missing section is appended to the end of the file.
func SetKeyInFile(path, section, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	newLine := key
	if value != "" {
		newLine = key + " " + value
	}

	current := ""
	sectionSeen := section == ""
	// insertAt is the index after the last line belonging to the target block
	insertAt := -1
	if section == "" {
		insertAt = 0
	}
	replaced := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			current = strings.Trim(trimmed, "[]")
			if current == section {
				sectionSeen = true
				insertAt = i + 1
			}
			continue
		}
		if current != section {
			continue
		}
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			insertAt = i + 1
			if name, _, _ := strings.Cut(trimmed, " "); name == key {
				lines[i] = newLine
				replaced = true
				break
			}
		}
	}

	switch {
	case replaced:
	case !sectionSeen:
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", newLine)
	default:
		lines = append(lines[:insertAt], append([]string{newLine}, lines[insertAt:]...)...)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return storage.AtomicWriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
