package cli

var (
	NewLogger     = newLogger
	PassRateColor = passRateColor
	WriteOutput   = writeOutput
)
