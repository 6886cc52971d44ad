package wameow

import (
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// handleEvent fans whatsmeow events out to named subscriptions.
func (c *Client) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		c.logger.Info("connected", "jid", c.ConnectedID())
		c.emit(waclient.EventReady, c.ConnectedID())

	case *events.Disconnected:
		c.logger.Warn("disconnected")
		c.emit(waclient.EventDisconnected, nil)

	case *events.LoggedOut:
		// The store is NOT deleted on logout; only the transport reacts.
		reason := "unknown"
		if v.Reason != 0 {
			reason = v.Reason.String()
		}
		c.logger.Warn("logged out by server", "reason", reason)
		c.emit(waclient.EventLoggedOut, reason)

	case *events.PairSuccess:
		c.logger.Info("device paired", "jid", v.ID.String())

	case *events.Message:
		if v.Info.IsFromMe || v.Info.Chat.Server == "broadcast" {
			return
		}
		c.emit(waclient.EventMessage, messageFromEvent(v))

	case *events.GroupInfo:
		c.handleGroupInfo(v)
	}
}

// messageFromEvent flattens a whatsmeow message event into the transport-
// neutral shape handlers consume.
func messageFromEvent(evt *events.Message) *waclient.Message {
	return &waclient.Message{
		ID:        evt.Info.ID,
		Chat:      evt.Info.Chat.String(),
		Sender:    evt.Info.Sender.String(),
		PushName:  evt.Info.PushName,
		Text:      extractText(evt),
		IsGroup:   evt.Info.IsGroup,
		Timestamp: evt.Info.Timestamp,
	}
}

// extractText pulls the body out of the several places a text can live.
func extractText(evt *events.Message) string {
	msg := evt.Message
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	return ""
}

// handleGroupInfo translates membership changes into join/leave
// notifications. Fields the protocol leaves unset stay empty; downstream
// normalization fills in placeholders.
func (c *Client) handleGroupInfo(evt *events.GroupInfo) {
	if len(evt.Join) == 0 && len(evt.Leave) == 0 {
		return
	}

	base := waclient.GroupNotification{
		ChatID: evt.JID.String(),
	}
	if evt.Sender != nil {
		base.Author = evt.Sender.String()
	}
	if evt.Name != nil {
		base.ChatName = evt.Name.Name
	}

	if len(evt.Join) > 0 {
		n := base
		n.Recipients = jidStrings(evt.Join)
		c.emit(waclient.EventGroupJoin, &n)
	}
	if len(evt.Leave) > 0 {
		n := base
		n.Recipients = jidStrings(evt.Leave)
		c.emit(waclient.EventGroupLeave, &n)
	}
}

func jidStrings(jids []types.JID) []string {
	out := make([]string, 0, len(jids))
	for _, j := range jids {
		out = append(out, j.String())
	}
	return out
}
