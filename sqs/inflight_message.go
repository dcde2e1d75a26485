package sqs

import (
	"context"
	"sync"
	"time"
)

// inFlightMessage is a received message whose visibility timeout is kept
// alive until it is acked, nacked or too old.
type inFlightMessage struct {
	messageID      string
	receivedAt     time.Time
	lastExtendedAt time.Time
	visibility     time.Duration
	size           int64
	ackFunc        func()
	extendFunc     func(ctx context.Context) error
	mu             sync.Mutex
}

func newInFlightMessage(messageID string, visibilityTimeoutSeconds int32, size int) *inFlightMessage {
	now := time.Now()

	return &inFlightMessage{
		messageID:      messageID,
		receivedAt:     now,
		lastExtendedAt: now,
		visibility:     time.Duration(visibilityTimeoutSeconds) * time.Second,
		size:           int64(size),
	}
}

func (m *inFlightMessage) MessageID() string { return m.messageID }

func (m *inFlightMessage) ReceivedAt() time.Time { return m.receivedAt }

func (m *inFlightMessage) Size() int64 { return m.size }

func (m *inFlightMessage) SetAckFunc(f func()) { m.ackFunc = f }

func (m *inFlightMessage) SetExtendFunc(f func(ctx context.Context) error) { m.extendFunc = f }

// Ack runs the ack callback once and stops further extension.
func (m *inFlightMessage) Ack() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ackFunc == nil {
		return
	}

	m.ackFunc()
	m.settle()
}

// Nack stops further extension without deleting the message. SQS makes it
// visible again once the current timeout expires.
func (m *inFlightMessage) Nack() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settle()
}

func (m *inFlightMessage) settle() {
	m.ackFunc = nil
	m.extendFunc = nil
}

// Settled reports whether Ack or Nack has been called.
func (m *inFlightMessage) Settled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ackFunc == nil
}

// DueForExtension reports whether more than half of the visibility timeout
// has elapsed since the last extension.
func (m *inFlightMessage) DueForExtension() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.extendFunc != nil && time.Since(m.lastExtendedAt) > m.visibility/2
}

// Extend pushes the visibility timeout out by another full period.
// lastExtendedAt only moves on success.
func (m *inFlightMessage) Extend(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Settled while waiting for the lock.
	if m.extendFunc == nil {
		return nil
	}

	if err := m.extendFunc(ctx); err != nil {
		return err
	}

	m.lastExtendedAt = time.Now()

	return nil
}
