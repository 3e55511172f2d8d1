package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/splitbundle/types"
)

// readInput returns the content of path, or stdin for "-"
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// parseRecords accepts either a YAML list of module records, a YAML list of
// paths, or one path per line. Paths get the given output kind.
func parseRecords(data []byte, kind types.OutputKind) ([]types.ModuleRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '-' || trimmed[0] == '[' {
		var nodes []yaml.Node
		if err := yaml.Unmarshal(trimmed, &nodes); err == nil {
			return recordsFromNodes(nodes, kind)
		}
	}

	var out []types.ModuleRecord
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, types.NewModuleRecord(line, kind))
	}
	return out, scanner.Err()
}

func recordsFromNodes(nodes []yaml.Node, kind types.OutputKind) ([]types.ModuleRecord, error) {
	out := make([]types.ModuleRecord, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		switch node.Kind {
		case yaml.ScalarNode:
			out = append(out, types.NewModuleRecord(node.Value, kind))
		case yaml.MappingNode:
			var rec types.ModuleRecord
			if err := node.Decode(&rec); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			if rec.Path == "" {
				return nil, fmt.Errorf("entry %d: path is required", i)
			}
			out = append(out, rec)
		default:
			return nil, fmt.Errorf("entry %d: expected a path or a module record", i)
		}
	}
	return out, nil
}

// collectRecords merges positional paths with the --input file
func collectRecords(args []string, input string, stdin io.Reader, kind types.OutputKind) ([]types.ModuleRecord, error) {
	recs := make([]types.ModuleRecord, 0, len(args))
	for _, a := range args {
		recs = append(recs, types.NewModuleRecord(a, kind))
	}
	if input == "" {
		return recs, nil
	}

	data, err := readInput(input, stdin)
	if err != nil {
		return nil, err
	}
	more, err := parseRecords(data, kind)
	if err != nil {
		return nil, fmt.Errorf("invalid input %s: %w", input, err)
	}
	return append(recs, more...), nil
}
