package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittocheck Configuration File
#
# Environment variables override values in this file, e.g.
#   DITTOCHECK_VERIFIER_ROOT=/srv/export
#   DITTOCHECK_LOGGING_LEVEL=DEBUG
`

var sectionComments = map[string]string{
	"logging":          "Log output (level: DEBUG|INFO|WARN|ERROR, format: text|json, output: stdout|stderr|<file>)",
	"verifier":         "Verification core: root is the exported directory full scans walk",
	"handles":          "Handle-to-path table (type: memory|badger)",
	"scheduler":        "Background full scans, optionally repairing failed paths",
	"metrics":          "Prometheus /metrics endpoint",
	"shutdown_timeout": "Maximum time to wait for graceful shutdown",
}

var durationKeys = map[string]bool{
	"shutdown_timeout": true,
	"interval":         true,
	"timeout":          true,
}

var modeKeys = map[string]bool{
	"file_repair_mode":      true,
	"directory_repair_mode": true,
}

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above each top-level section. Durations are written as strings ("30s")
// and permission modes in octal.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		if comment, ok := sectionComments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = comment
		}
	}
	humanizeScalars(&doc)

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func humanizeScalars(node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		for _, child := range node.Content {
			humanizeScalars(child)
		}
		return
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			humanizeScalars(value)
			continue
		}

		n, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case durationKeys[key.Value]:
			value.Tag = "!!str"
			value.Value = time.Duration(n).String()
		case modeKeys[key.Value]:
			value.Value = fmt.Sprintf("0%o", n)
		}
	}
}
