package e2e

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteCorpus writes every sheet of c into dir and returns the file paths in corpus order.
func WriteCorpus(dir string, c *Corpus) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(c.Sheets))
	for _, s := range c.Sheets {
		path := filepath.Join(dir, s.Name)
		if err := os.WriteFile(path, s.Content, 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", s.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
