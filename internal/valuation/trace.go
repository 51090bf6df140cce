package valuation

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// QA flags raised by the block valuator
const (
	FlagNonPositiveArea      = "Block area must be greater than zero"
	FlagMissingProduction    = "Missing production data for measured yield"
	FlagInvalidPeriodDays    = "Invalid period days for measured yield"
	FlagMissingYieldCurve    = "Missing age-yield curve data for modeled yield"
	FlagMissingCostData      = "Missing cost data for projections"
	FlagMissingCriticalInput = "Missing critical pricing or cost data"
)

// trace accumulates the ordered calculation steps and QA flags of one block
type trace struct {
	printer *message.Printer
	steps   []string
	flags   []string
}

func newTrace() *trace {
	return &trace{
		printer: message.NewPrinter(language.English),
		steps:   []string{},
		flags:   []string{},
	}
}

func (t *trace) step(format string, args ...interface{}) {
	t.steps = append(t.steps, t.printer.Sprintf(format, args...))
}

func (t *trace) flag(msg string) {
	t.flags = append(t.flags, msg)
}
