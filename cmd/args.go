package cmd

// CommandArgs contains parsed command arguments
type CommandArgs struct {
	// Positional arguments (command-specific)
	Args []string

	// Parsed flags
	Flags map[string]any

	// Raw unparsed arguments (for custom parsing)
	Raw []string
}

// Bool reads a boolean flag, false when absent or mistyped.
func (a *CommandArgs) Bool(name string) bool {
	v, _ := a.Flags[name].(bool)
	return v
}

// String reads a string flag, falling back to def when absent.
func (a *CommandArgs) String(name, def string) string {
	if v, ok := a.Flags[name].(string); ok {
		return v
	}
	return def
}

// CommandFlagSet defines the expected flags for a command
type CommandFlagSet struct {
	Flags map[string]*CommandFlag
}

// CommandFlag represents a single command-line flag
type CommandFlag struct {
	Name        string `json:"name"`              // e.g., "long" or "l"
	Short       string `json:"short"`             // Single-char shorthand (e.g., "l")
	Type        string `json:"type"`              // "string", "bool", "int"
	Default     any    `json:"default,omitempty"` // Default value
	Required    bool   `json:"required"`          // Must be provided
	Description string `json:"description"`       // Help text
}
