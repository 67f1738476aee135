package usecase

import "time"

// ConfigService exports for testing
type ConfigService = configService

// Export configService methods for testing
func (c *configService) FindConfigInDirectory(dir string) string {
	return c.findConfigInDirectory(dir)
}

var BuildMessage = buildMessage

// NewSlackActionWithBackoff returns a slack action that waits d between retries.
func NewSlackActionWithBackoff(d time.Duration) *slackAction {
	a := NewSlackAction().(*slackAction)
	a.backoff = func(int) time.Duration { return d }
	return a
}

// SetClock replaces the clock of the inventory service.
func (s *InventoryService) SetClock(now func() time.Time) {
	s.now = now
}
