package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// File renders a template against data and writes the result to path.
// Rendering happens fully in memory first: a missing key or a template
// error never leaves a partially substituted file on disk.
func File(name, tmpl string, data any, path string, perm os.FileMode) error {
	content, err := String(name, tmpl, data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// String renders a template against data and returns the result.
func String(name, tmpl string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}
