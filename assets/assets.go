package assets

import (
	"embed"
	"fmt"
)

//go:embed templates
var Templates embed.FS

// Template returns the raw contents of an embedded template by file name.
func Template(name string) (string, error) {
	b, err := Templates.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("embedded template %s: %w", name, err)
	}
	return string(b), nil
}
