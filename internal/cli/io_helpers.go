package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func promptConfirm(prompt string) (bool, error) {
	if !stdinIsTTY() {
		return false, errors.New("confirmation required (rerun with --yes in non-interactive mode)")
	}
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func stdinIsTTY() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// parseOCRRect parses "x,y,w,h" into the rectangle the analysis
// endpoint expects. An empty string means no rectangle.
func parseOCRRect(raw string) (*[4]int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("ocr rect must be x,y,w,h, got %q", raw)
	}
	var rect [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("ocr rect component %q is not an integer", p)
		}
		rect[i] = n
	}
	if rect[2] <= 0 || rect[3] <= 0 {
		return nil, fmt.Errorf("ocr rect width and height must be > 0")
	}
	return &rect, nil
}

// readExclusionList reads one exclusion phrase per line. Blank lines
// and lines starting with # are skipped.
func readExclusionList(path string) ([]string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read exclusion list: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		v := strings.TrimSpace(line)
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
