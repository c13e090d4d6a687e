package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"streamline/models"
	"strings"

	"github.com/tidwall/gjson"
)

// LegacyMain mirrors config_main.json from the desktop release.
type LegacyMain struct {
	Lang           string
	ServerPort     string
	ConfigUserPath string
}

var ErrInvalidLegacyJSON = errors.New("invalid legacy JSON document")

func readJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidLegacyJSON)
	}
	return data, nil
}

func ReadLegacyMain(path string) (LegacyMain, error) {
	var m LegacyMain
	data, err := readJSONFile(path)
	if err != nil {
		return m, err
	}
	res := gjson.GetManyBytes(data, "lang", "server_port", "config_user_path")
	m.Lang = res[0].String()
	m.ServerPort = res[1].String()
	m.ConfigUserPath = res[2].String()
	return m, nil
}

// ParseLegacyRules reads a config_user.json document of the form
// {"<pattern>": {"active": bool, "description": string}}. Document order is kept.
// Entries with an empty pattern or a non-object value are skipped and counted.
func ParseLegacyRules(data []byte) ([]models.BlockRule, int, error) {
	if !gjson.ValidBytes(data) {
		return nil, 0, ErrInvalidLegacyJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, 0, fmt.Errorf("top level is not an object: %w", ErrInvalidLegacyJSON)
	}
	var rules []models.BlockRule
	skipped := 0
	root.ForEach(func(key, value gjson.Result) bool {
		pattern := key.String()
		if strings.TrimSpace(pattern) == "" || !value.IsObject() {
			skipped++
			return true
		}
		rules = append(rules, models.BlockRule{
			Pattern:     pattern,
			Active:      value.Get("active").Bool(),
			Description: value.Get("description").String(),
		})
		return true
	})
	return rules, skipped, nil
}

func ReadLegacyRules(path string) ([]models.BlockRule, int, error) {
	data, err := readJSONFile(path)
	if err != nil {
		return nil, 0, err
	}
	rules, skipped, err := ParseLegacyRules(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return rules, skipped, nil
}

// ResolveLegacyUserPath locates config_user.json. Relative paths in config_main.json were
// relative to the program directory, which is the parent of the config directory.
func ResolveLegacyUserPath(mainPath string, m LegacyMain) string {
	userPath := m.ConfigUserPath
	if userPath == "" {
		userPath = "config_user.json"
	}
	if filepath.IsAbs(userPath) {
		return userPath
	}
	mainDir := filepath.Dir(mainPath)
	candidates := []string{
		filepath.Join(filepath.Dir(mainDir), userPath),
		filepath.Join(mainDir, userPath),
		filepath.Join(mainDir, filepath.Base(userPath)),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}

// LoadLegacy reads config_main.json and the rule file it points at.
func LoadLegacy(mainPath string) (LegacyMain, []models.BlockRule, int, error) {
	m, err := ReadLegacyMain(mainPath)
	if err != nil {
		return m, nil, 0, err
	}
	rules, skipped, err := ReadLegacyRules(ResolveLegacyUserPath(mainPath, m))
	return m, rules, skipped, err
}

// ExportLegacyRules renders rules in the config_user.json shape, keeping rule order.
func ExportLegacyRules(rules []models.BlockRule) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, r := range rules {
		key, err := json.Marshal(r.Pattern)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(struct {
			Active      bool   `json:"active"`
			Description string `json:"description"`
		}{r.Active, r.Description})
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	if len(rules) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
