//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	db := containers.NewPostgres(s.T())
	s.store = New(db)
	s.Require().NoError(s.store.Migrate(context.Background()))
	s.Require().NoError(s.store.Migrate(context.Background()), "migration is idempotent")
}

func (s *StoreSuite) TestAppendAndList() {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	subject := "0x00000000000000000000000000000000000000000000000000000000000a11ce"

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base, Subject: subject, Action: string(audit.EventGrantCreated), Resource: "memory:read",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base.Add(time.Minute), Subject: subject, Action: string(audit.EventIntegrityMismatch), Reason: "hash mismatch",
	}))

	s.Run("by subject oldest first", func() {
		events, err := s.store.ListBySubject(ctx, subject)
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(string(audit.EventGrantCreated), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
		s.Equal("memory:read", events[0].Resource)
		s.Equal(audit.CategorySecurity, events[1].Category)
	})

	s.Run("recent newest first", func() {
		events, err := s.store.ListRecent(ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("hash mismatch", events[0].Reason)
	})
}

func (s *StoreSuite) TestAppendBatchIsAtomic() {
	ctx := context.Background()
	base := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	subject := "0x00000000000000000000000000000000000000000000000000000000000b0b00"

	s.Run("all rows land together", func() {
		batch := []audit.Event{
			{Timestamp: base, Subject: subject, Action: string(audit.EventSessionChallenged)},
			{Timestamp: base.Add(time.Second), Subject: subject, Action: string(audit.EventSessionSigned)},
			{Timestamp: base.Add(2 * time.Second), Subject: subject, Action: string(audit.EventDecryptSucceeded)},
		}
		s.Require().NoError(s.store.AppendBatch(ctx, batch))

		events, err := s.store.ListBySubject(ctx, subject)
		s.Require().NoError(err)
		s.Len(events, 3)
	})

	s.Run("a bad row rolls the batch back", func() {
		other := "0x00000000000000000000000000000000000000000000000000000000000c0c00"
		batch := []audit.Event{
			{Timestamp: base, Subject: other, Action: string(audit.EventDecryptDenied)},
			{Subject: other, Action: string(audit.EventDecryptDenied)},
		}
		// TEXT columns reject invalid UTF-8.
		batch[1].Reason = string([]byte{0xff, 0xfe})
		s.Error(s.store.AppendBatch(ctx, batch))

		events, err := s.store.ListBySubject(ctx, other)
		s.Require().NoError(err)
		s.Empty(events)
	})
}
