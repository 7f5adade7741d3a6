package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/marminbh/statuswatch/internal/models"
)

const separator = "================================================================================"

// Console writes each incident as a human-readable block.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter writes to the given writer instead of stdout.
func NewConsoleWriter(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Emit(_ context.Context, incident models.Incident) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\n%s\n%s\n%s\n", separator, Format(incident), separator)
	return err
}

// Format renders an incident the way the console sink prints it.
func Format(incident models.Incident) string {
	components := "General"
	if len(incident.Components) > 0 {
		components = strings.Join(incident.Components, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", incident.OccurredAt.Format("2006-01-02 15:04:05"))
	if incident.SourceName != "" {
		fmt.Fprintf(&b, "Provider: %s | ", incident.SourceName)
	}
	fmt.Fprintf(&b, "Product: %s\n", components)
	fmt.Fprintf(&b, "Status: %s - %s", incident.Status, incident.Title)
	if incident.EventKind != "" {
		fmt.Fprintf(&b, "\nEvent: %s", incident.EventKind)
	}
	if incident.Link != "" {
		fmt.Fprintf(&b, "\nLink: %s", incident.Link)
	}
	return b.String()
}
