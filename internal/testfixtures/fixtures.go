// Package testfixtures provides deterministic building blocks shared by the
// package test suites: a controllable clock and canonical fixture values.
package testfixtures

import (
	"time"

	"github.com/example/team-channel/internal/channel"
)

// ReferenceTime is the canonical instant fixtures are anchored to.
func ReferenceTime() time.Time {
	return time.Date(2024, 12, 25, 9, 0, 0, 0, time.UTC)
}

// ReferenceKey is the canonical channel used across tests.
func ReferenceKey() channel.Key {
	return channel.NewKey("team-t", "2024-12-25")
}

// Message builds a normal chat message in the reference channel. SentAt is
// offset from ReferenceTime by the id so default fixtures are already in
// (sentAt, id) order.
func Message(id int64, senderID, content string) channel.Message {
	return channel.Message{
		ID:       id,
		Key:      ReferenceKey(),
		SenderID: senderID,
		Content:  content,
		Type:     channel.MessageTypeNormal,
		SentAt:   ReferenceTime().Add(time.Duration(id) * time.Second),
	}
}

// ScheduleRequest builds a pending schedule_request message in the reference
// channel.
func ScheduleRequest(id int64, senderID string, scheduleID int64, start, end time.Time) channel.Message {
	msg := Message(id, senderID, "時間変更をお願いします")
	msg.Type = channel.MessageTypeScheduleRequest
	msg.RelatedScheduleID = &scheduleID
	msg.RequestedStart = &start
	msg.RequestedEnd = &end
	msg.NegotiationStatus = channel.NegotiationPending
	return msg
}
