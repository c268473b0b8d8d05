// Package render draws the admin console on a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"admin-alerts/client"
	"admin-alerts/domain"
)

const dateLayout = "2006-01-02 15:04"

// Text renders console state as plain text. Each Render writes a full frame.
type Text struct {
	mu  sync.Mutex
	out io.Writer
}

func NewText(out io.Writer) *Text {
	return &Text{out: out}
}

func (t *Text) Render(s client.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	conn := "offline"
	if s.Connected {
		conn = "live"
	}
	fmt.Fprintf(&b, "== Orders (%d) [%s] ==\n", len(s.Orders), conn)

	if len(s.Orders) == 0 {
		b.WriteString("no orders yet\n")
	} else {
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCUSTOMER\tPHONE\tTOTAL\tDATE\tSTATUS")
		for _, o := range s.Orders {
			fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\t%s\t%s\n",
				o.ID, o.CustomerName, o.Phone(), domain.FormatTotal(o.TotalAmount),
				o.OrderDate.Local().Format(dateLayout), o.Status.Label())
		}
		tw.Flush()
	}

	for _, n := range s.Notifications {
		fmt.Fprintf(&b, "[%s] %s %s (%s)\n", n.Kind, n.Title, n.Message, shortID(n.ID))
	}
	_, _ = io.WriteString(t.out, b.String())
}

// shortID is the prefix users type to dismiss a notification.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
