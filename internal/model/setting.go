package model

// Setting holds user preferences persisted between runs.
type Setting struct {
	Mode         []string `json:"mode" mapstructure:"mode"`
	OutputFormat string   `json:"output_format" mapstructure:"output_format"`
	OutputPath   string   `json:"output_path" mapstructure:"output_path"`
	OutputFile   string   `json:"output_file" mapstructure:"output_file"`
	Exclude      []string `json:"exclude,omitempty" mapstructure:"exclude"`
}
