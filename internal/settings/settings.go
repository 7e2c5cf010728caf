// Package settings persists user preferences as a JSON file.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/fossrun/internal/model"

	"github.com/spf13/viper"
)

const (
	FileName     = "setting.json"
	SavedMessage = "Setting file saved successfully"
)

// DefaultPath is <user config dir>/fossrun/setting.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fossrun", FileName), nil
}

// Save writes s to path, replacing the previous content, and returns a
// confirmation message.
func Save(path string, s model.Setting) (string, error) {
	if err := save(path, s); err != nil {
		return "", fmt.Errorf("failed to save setting: %w", err)
	}
	return SavedMessage, nil
}

func save(path string, s model.Setting) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("mode", s.Mode)
	v.Set("output_format", s.OutputFormat)
	v.Set("output_path", s.OutputPath)
	v.Set("output_file", s.OutputFile)
	if len(s.Exclude) > 0 {
		v.Set("exclude", s.Exclude)
	}
	return v.WriteConfigAs(path)
}

// Load reads the setting stored at path.
func Load(path string) (model.Setting, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return model.Setting{}, fmt.Errorf("failed to load setting: %w", err)
	}
	var s model.Setting
	if err := v.Unmarshal(&s); err != nil {
		return model.Setting{}, fmt.Errorf("failed to load setting: %w", err)
	}
	return s, nil
}
