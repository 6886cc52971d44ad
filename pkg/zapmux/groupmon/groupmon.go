// Package groupmon translates raw group join/leave notifications into
// normalized activity records. Subscription goes through the supervised
// subscribe surface, so one malformed notification never stops monitoring of
// the ones that follow.
package groupmon

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// Action is what happened to the actor.
type Action string

const (
	ActionJoined Action = "joined"
	ActionLeft   Action = "left"
)

// unknownGroupName is the placeholder used when the chat carries no display
// name.
const unknownGroupName = "Unknown Group"

// Record is one normalized group membership event. Records are ephemeral and
// never persisted.
type Record struct {
	GroupID     string
	GroupName   string
	ActorID     string
	ActorNumber string
	Action      Action
}

// Monitor watches one client's group membership notifications.
type Monitor struct {
	on     waclient.Subscriber
	logger *slog.Logger
}

// New creates a Monitor. on should be a safeevents-wrapped subscriber so the
// isolation discipline applies to the caller's callback too.
func New(on waclient.Subscriber, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		on:     on,
		logger: logger.With("component", "groupmon"),
	}
}

// OnActivity invokes cb with a Record for every join and leave notification.
func (m *Monitor) OnActivity(cb func(Record)) {
	m.on(waclient.EventGroupJoin, func(data any) {
		m.handle(data, ActionJoined, cb)
	})
	m.on(waclient.EventGroupLeave, func(data any) {
		m.handle(data, ActionLeft, cb)
	})
}

func (m *Monitor) handle(data any, action Action, cb func(Record)) {
	n, ok := data.(*waclient.GroupNotification)
	if !ok || n == nil {
		m.logger.Warn("dropping malformed group notification",
			"action", action,
			"payload_type", fmt.Sprintf("%T", data))
		return
	}

	rec, ok := normalize(n, action)
	if !ok {
		m.logger.Warn("group notification missing identifiers",
			"action", action,
			"chat_id", n.ChatID)
		return
	}

	cb(rec)
}

// normalize derives a Record from a raw notification. Returns false when the
// notification identifies neither a group nor an actor.
func normalize(n *waclient.GroupNotification, action Action) (Record, bool) {
	groupID := n.ChatID
	if groupID == "" {
		groupID = n.MessageRemoteID
	}

	actor := n.Author
	if actor == "" && action == ActionLeft && len(n.Recipients) > 0 {
		actor = n.Recipients[0]
	}

	if groupID == "" || actor == "" {
		return Record{}, false
	}

	name := n.ChatName
	if name == "" {
		name = unknownGroupName
	}

	return Record{
		GroupID:     groupID,
		GroupName:   name,
		ActorID:     actor,
		ActorNumber: strings.SplitN(actor, "@", 2)[0],
		Action:      action,
	}, true
}
