package service

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"melange-connection-backend/internal/domain"
	"melange-connection-backend/internal/repository"
)

// MessageSequence is a connection transcript, oldest first. It is loaded on
// first use and every later call walks the same snapshot, so iterating twice
// yields the same messages.
type MessageSequence struct {
	load  func() ([]domain.ConnectionMessage, error)
	limit int

	once      sync.Once
	messages  []domain.ConnectionMessage
	truncated bool
	err       error
}

// NewMessageSequence wraps load so it runs at most once.
func NewMessageSequence(load func() ([]domain.ConnectionMessage, error)) *MessageSequence {
	return &MessageSequence{load: load}
}

// NewCappedMessageSequence keeps the first limit messages load returns and
// reports the transcript as truncated when there were more. load should ask
// for one message beyond limit.
func NewCappedMessageSequence(limit int, load func() ([]domain.ConnectionMessage, error)) *MessageSequence {
	return &MessageSequence{load: load, limit: limit}
}

func (s *MessageSequence) fetch() {
	s.once.Do(func() {
		s.messages, s.err = s.load()
		if s.limit > 0 && len(s.messages) > s.limit {
			s.messages = s.messages[:s.limit]
			s.truncated = true
		}
	})
}

// Truncated reports whether the transcript holds more messages than were loaded.
func (s *MessageSequence) Truncated() bool {
	s.fetch()
	return s.truncated
}

// Err reports the error of loading the transcript, if any.
func (s *MessageSequence) Err() error {
	s.fetch()
	return s.err
}

func (s *MessageSequence) Len() int {
	s.fetch()
	return len(s.messages)
}

func (s *MessageSequence) At(i int) domain.ConnectionMessage {
	s.fetch()
	return s.messages[i]
}

// All yields the messages in order. Calling it again restarts from the first message.
func (s *MessageSequence) All() iter.Seq[domain.ConnectionMessage] {
	return func(yield func(domain.ConnectionMessage) bool) {
		s.fetch()
		for _, m := range s.messages {
			if !yield(m) {
				return
			}
		}
	}
}

// Slice returns a copy of the loaded messages.
func (s *MessageSequence) Slice() ([]domain.ConnectionMessage, error) {
	s.fetch()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.ConnectionMessage, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func cleanMessage(content string, maxLength int) (string, error) {
	return domain.CleanMessage("content", content, maxLength)
}

func appendMessage(ctx context.Context, repos *repository.Repositories, connectionID int32, authorID *int32, content string, isPrivate, autoGenerated bool) (*domain.ConnectionMessage, error) {
	msg := &domain.ConnectionMessage{
		ConnectionID:    connectionID,
		AuthorID:        authorID,
		Content:         content,
		IsPrivate:       isPrivate,
		IsAutoGenerated: autoGenerated,
	}
	if err := repos.Messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message to connection %d: %w", connectionID, err)
	}
	return msg, nil
}
