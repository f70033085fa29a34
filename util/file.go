package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// WriteLines writes the given lines to savePath, one per line, replacing
// any previous content. Missing parent directories are created.
func WriteLines(savePath string, lines ...string) error {
	if err := EnsureDir(filepath.Dir(savePath)); err != nil {
		return err
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(savePath, []byte(content), 0644)
}

// AppendLines appends the lines to savePath, creating it if needed.
func AppendLines(savePath string, lines ...string) error {
	if err := EnsureDir(filepath.Dir(savePath)); err != nil {
		return err
	}
	f, err := os.OpenFile(savePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, s := range lines {
		if _, err = f.WriteString(s + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// AppendJSONLine marshals v and appends it as a single jsonl record.
func AppendJSONLine(savePath string, v interface{}) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return AppendLines(savePath, string(bs))
}

func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, os.ModePerm)
}
