package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/MrEthical07/wanderauth/docstore"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("profile not found")

// Update is one delivery from a profile subscription. Exists is false when
// no record has been written for the account yet.
type Update struct {
	AccountID string
	Record    Record
	Exists    bool
	Err       error
}

// Store reads and writes profile records in the document store.
type Store struct {
	docs *docstore.Store
}

func NewStore(docs *docstore.Store) *Store {
	return &Store{docs: docs}
}

// Get returns the record for accountID; ok is false when none exists.
func (s *Store) Get(ctx context.Context, accountID string) (Record, bool, error) {
	snap, err := s.docs.Get(ctx, Path(accountID))
	if err != nil {
		return Record{}, false, err
	}
	if !snap.Exists {
		return Record{}, false, nil
	}

	var rec Record
	if err := snap.Decode(&rec); err != nil {
		return Record{}, false, fmt.Errorf("decode profile %s: %w", accountID, err)
	}
	return rec, true, nil
}

// Put writes the full record for accountID.
func (s *Store) Put(ctx context.Context, accountID string, rec Record) error {
	return s.docs.Write(ctx, Path(accountID), rec)
}

// Subscribe streams the record for accountID to fn until the returned
// closer is closed. After Close returns fn is never invoked again.
func (s *Store) Subscribe(ctx context.Context, accountID string, fn func(Update)) (io.Closer, error) {
	sub, err := s.docs.Subscribe(ctx, Path(accountID), func(snap docstore.Snapshot) {
		update := Update{AccountID: accountID, Exists: snap.Exists}
		if snap.Exists {
			if err := snap.Decode(&update.Record); err != nil {
				update = Update{AccountID: accountID, Err: fmt.Errorf("decode profile %s: %w", accountID, err)}
			}
		}
		fn(update)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// FindEmailByUsername returns the auth email of the record whose username
// equals the already-normalized username. Uniqueness is not enforced by the
// store; when several records match, the earliest created one wins.
func (s *Store) FindEmailByUsername(ctx context.Context, username string) (string, error) {
	rec, err := s.findFirst(ctx, UsernameField, username)
	if err != nil {
		return "", err
	}
	return rec.Email, nil
}

// FindByEmail returns the record whose auth email is email.
func (s *Store) FindByEmail(ctx context.Context, email string) (Record, bool, error) {
	rec, err := s.findFirst(ctx, EmailField, email)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) findFirst(ctx context.Context, field, value string) (Record, error) {
	snaps, err := s.docs.QueryEqual(ctx, Collection, field, value)
	if err != nil {
		return Record{}, err
	}

	records := make([]Record, 0, len(snaps))
	for _, snap := range snaps {
		var rec Record
		if err := snap.Decode(&rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}

	sort.SliceStable(records, func(i, j int) bool {
		return createdAt(records[i]) < createdAt(records[j])
	})
	return records[0], nil
}

func createdAt(r Record) int64 {
	if r.CreatedAt == nil {
		return 1<<63 - 1
	}
	return r.CreatedAt.UnixNano()
}

// LookupUsername adapts FindEmailByUsername to a found/not-found result.
func (s *Store) LookupUsername(ctx context.Context, username string) (string, bool, error) {
	email, err := s.FindEmailByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return email, true, nil
}
