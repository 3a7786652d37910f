package worker

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadDocumentList reads document paths from a file, one per line.
// Blank lines and # comments are skipped; duplicates keep their first position.
func ReadDocumentList(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open document list: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan document list: %w", err)
	}

	return Dedupe(paths), nil
}

// Dedupe drops repeated entries, keeping list order
func Dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
