// Package reminder implements the pre-appointment reminder pipeline: a
// periodic scanner over the lead window and a dispatcher that delivers one
// reminder per appointment through the messaging channel.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/belagenda/belagenda/internal/model"
)

// Outcome is the result of a single delivery attempt.
type Outcome int

const (
	// Delivered means the channel acknowledged the message.
	Delivered Outcome = iota
	// NotReachable means the recipient is not a registered endpoint, or the
	// send failed.
	NotReachable
	// ChannelUnavailable means the channel session was not ready; no send was
	// attempted.
	ChannelUnavailable
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case NotReachable:
		return "not_reachable"
	case ChannelUnavailable:
		return "channel_unavailable"
	default:
		return "unknown"
	}
}

// Channel is the external messaging transport. Ready reflects the session
// state and must be checked before either call.
type Channel interface {
	Ready(ctx context.Context) bool
	IsRegistered(ctx context.Context, address string) (bool, error)
	Send(ctx context.Context, address string, text string) error
}

// Dispatcher makes a single synchronous delivery attempt per invocation.
// No retries, no queuing.
type Dispatcher struct {
	channel     Channel
	countryCode string
	loc         *time.Location
}

func NewDispatcher(channel Channel, countryCode string, loc *time.Location) *Dispatcher {
	countryCode = strings.TrimSpace(countryCode)
	if countryCode == "" {
		countryCode = "55"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{channel: channel, countryCode: countryCode, loc: loc}
}

func (d *Dispatcher) Notify(ctx context.Context, appt model.Appointment) Outcome {
	if !d.channel.Ready(ctx) {
		return ChannelUnavailable
	}

	address := d.Address(appt.Phone)
	registered, err := d.channel.IsRegistered(ctx, address)
	if err != nil || !registered {
		return NotReachable
	}

	if err := d.channel.Send(ctx, address, FormatMessage(appt, d.loc)); err != nil {
		return NotReachable
	}
	return Delivered
}

// Address converts a normalized national phone number into the channel's
// recipient identifier, e.g. "5511987654321@c.us".
func (d *Dispatcher) Address(phone string) string {
	return d.countryCode + phone + "@c.us"
}

// FormatMessage renders the reminder text with the client name, the local
// clock time of the slot and the joined procedure list.
func FormatMessage(appt model.Appointment, loc *time.Location) string {
	return fmt.Sprintf(
		"⏰ *Lembrete de Agendamento* ⏰\n\nOlá *%s*,\nHoje às *%s*\nProcedimento: *%s*",
		appt.ClientName,
		appt.ScheduledAt.In(loc).Format("15:04"),
		strings.Join(appt.Procedures, ", "),
	)
}
