package render

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"admin-alerts/domain"
)

// StatusChanger is satisfied by client.Dispatcher.
type StatusChanger interface {
	RequestStatusChange(orderID int64, status domain.Status) error
}

// Dismisser is satisfied by client.Console.
type Dismisser interface {
	Dismiss(id string)
}

const helpText = `commands:
  status <order-id> <pending|confirmed|delivered|cancelled>
  dismiss <notification-id>
  help
  quit
`

// Prompt reads user commands line by line.
type Prompt struct {
	changer StatusChanger
	dismiss Dismisser
	out     io.Writer
	log     *log.Logger
}

func NewPrompt(changer StatusChanger, dismiss Dismisser, out io.Writer, logger *log.Logger) *Prompt {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Prompt{changer: changer, dismiss: dismiss, out: out, log: logger}
}

// Run returns when in is exhausted, the user quits or ctx is done.
func (p *Prompt) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if quit := p.Exec(line); quit {
				return nil
			}
		}
	}
}

// Exec runs one command line and reports whether the user asked to quit.
func (p *Prompt) Exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "help", "?":
		fmt.Fprint(p.out, helpText)
	case "status":
		if len(fields) != 3 {
			fmt.Fprintln(p.out, "usage: status <order-id> <status>")
			return false
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(fields[1], "#"), 10, 64)
		if err != nil || id <= 0 {
			fmt.Fprintf(p.out, "invalid order id %q\n", fields[1])
			return false
		}
		status, err := domain.ParseStatus(strings.ToLower(fields[2]))
		if err != nil {
			fmt.Fprintln(p.out, err)
			return false
		}
		if err := p.changer.RequestStatusChange(id, status); err != nil {
			fmt.Fprintf(p.out, "request not sent: %v\n", err)
			return false
		}
		fmt.Fprintf(p.out, "requested order #%d -> %s\n", id, status.Label())
	case "dismiss":
		if len(fields) != 2 {
			fmt.Fprintln(p.out, "usage: dismiss <notification-id>")
			return false
		}
		p.dismiss.Dismiss(fields[1])
	default:
		p.log.WithField("command", fields[0]).Debug("unknown console command")
		fmt.Fprintf(p.out, "unknown command %q, type help\n", fields[0])
	}
	return false
}
