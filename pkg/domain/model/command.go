package model

import "time"

// CommandAction represents a command execution action
type CommandAction struct {
	Command string
	Args    []string
	Timeout time.Duration
	Env     []string // Additional environment variables
}
