package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/jobfront/internal/crypto"
	"github.com/dgellow/jobfront/internal/idp"
	"github.com/dgellow/jobfront/internal/log"
	"github.com/dgellow/jobfront/internal/statetoken"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage persists pending states, profiles and sessions in Google Cloud Firestore.
// Profiles carry personal data and are encrypted before they are written.
type FirestoreStorage struct {
	client     *firestore.Client
	encryptor  crypto.Encryptor
	collection string
	now        func() time.Time
}

var _ Storage = (*FirestoreStorage)(nil)

// PendingAuthDoc is a pending state document keyed by nonce
type PendingAuthDoc struct {
	UserID    string `firestore:"user_id"`
	FromURL   string `firestore:"from_url"`
	ExpiresAt int64  `firestore:"expires_at"`
}

// ProfileDoc is a linked profile document keyed by provider and user id
type ProfileDoc struct {
	UserID    string `firestore:"user_id"`
	Provider  string `firestore:"provider"`
	Data      string `firestore:"data"` // encrypted JSON profile
	FirstSeen int64  `firestore:"first_seen"`
	UpdatedAt int64  `firestore:"updated_at"`
}

// SessionDoc is a session document keyed by session id
type SessionDoc struct {
	UserID    string `firestore:"user_id"`
	Provider  string `firestore:"provider"`
	CreatedAt int64  `firestore:"created_at"`
	ExpiresAt int64  `firestore:"expires_at"`
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string, encryptor crypto.Encryptor) (*FirestoreStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("firestore", "Connected to Firestore", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStorage{
		client:     client,
		encryptor:  encryptor,
		collection: collection,
		now:        time.Now,
	}, nil
}

func (s *FirestoreStorage) pendingCol() *firestore.CollectionRef {
	return s.client.Collection(s.collection + "_pending_auth")
}

func (s *FirestoreStorage) profilesCol() *firestore.CollectionRef {
	return s.client.Collection(s.collection + "_profiles")
}

func (s *FirestoreStorage) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection(s.collection + "_sessions")
}

// StorePendingAuth stores a pending state under nonce
func (s *FirestoreStorage) StorePendingAuth(ctx context.Context, nonce string, state statetoken.PendingAuthState, expiresAt time.Time) error {
	doc := PendingAuthDoc{
		UserID:    state.UserID,
		FromURL:   state.FromURL,
		ExpiresAt: expiresAt.Unix(),
	}
	if _, err := s.pendingCol().Doc(nonce).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store pending auth: %w", err)
	}
	return nil
}

// ConsumePendingAuth reads and deletes a pending state in one transaction
func (s *FirestoreStorage) ConsumePendingAuth(ctx context.Context, nonce string) (statetoken.PendingAuthState, error) {
	ref := s.pendingCol().Doc(nonce)

	var doc PendingAuthDoc
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrPendingAuthNotFound
			}
			return fmt.Errorf("failed to get pending auth: %w", err)
		}
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("failed to unmarshal pending auth: %w", err)
		}
		return tx.Delete(ref)
	})
	if err != nil {
		if errors.Is(err, ErrPendingAuthNotFound) {
			return statetoken.PendingAuthState{}, err
		}
		return statetoken.PendingAuthState{}, fmt.Errorf("failed to consume pending auth: %w", err)
	}

	if s.now().Unix() >= doc.ExpiresAt {
		return statetoken.PendingAuthState{}, ErrPendingAuthNotFound
	}
	return statetoken.PendingAuthState{UserID: doc.UserID, FromURL: doc.FromURL}, nil
}

// UpsertProfile creates or updates a linked profile, keeping the original first_seen
func (s *FirestoreStorage) UpsertProfile(ctx context.Context, profile LinkedProfile) error {
	data, err := json.Marshal(profile.Profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	encrypted, err := s.encryptor.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("failed to encrypt profile: %w", err)
	}

	now := s.now().Unix()
	ref := s.profilesCol().Doc(profileKey(profile.UserID, profile.Provider))
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		firstSeen := now
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var existing ProfileDoc
			if err := snap.DataTo(&existing); err == nil && existing.FirstSeen != 0 {
				firstSeen = existing.FirstSeen
			}
		case status.Code(err) != codes.NotFound:
			return fmt.Errorf("failed to get profile: %w", err)
		}
		return tx.Set(ref, ProfileDoc{
			UserID:    profile.UserID,
			Provider:  profile.Provider,
			Data:      encrypted,
			FirstSeen: firstSeen,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the profile linked for userID and provider
func (s *FirestoreStorage) GetProfile(ctx context.Context, userID, provider string) (*LinkedProfile, error) {
	snap, err := s.profilesCol().Doc(profileKey(userID, provider)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var doc ProfileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	decrypted, err := s.encryptor.Decrypt(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt profile: %w", err)
	}
	var p idp.Profile
	if err := json.Unmarshal([]byte(decrypted), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile data: %w", err)
	}

	return &LinkedProfile{
		UserID:    doc.UserID,
		Provider:  doc.Provider,
		Profile:   p,
		FirstSeen: time.Unix(doc.FirstSeen, 0),
		UpdatedAt: time.Unix(doc.UpdatedAt, 0),
	}, nil
}

// CreateSession stores a new session
func (s *FirestoreStorage) CreateSession(ctx context.Context, session Session) error {
	doc := SessionDoc{
		UserID:    session.UserID,
		Provider:  session.Provider,
		CreatedAt: session.CreatedAt.Unix(),
		ExpiresAt: session.ExpiresAt.Unix(),
	}
	if _, err := s.sessionsCol().Doc(session.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns a live session
func (s *FirestoreStorage) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	snap, err := s.sessionsCol().Doc(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var doc SessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session := &Session{
		ID:        sessionID,
		UserID:    doc.UserID,
		Provider:  doc.Provider,
		CreatedAt: time.Unix(doc.CreatedAt, 0),
		ExpiresAt: time.Unix(doc.ExpiresAt, 0),
	}
	if session.IsExpired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// RevokeSession deletes a session
func (s *FirestoreStorage) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := s.sessionsCol().Doc(sessionID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// CleanupExpired removes expired sessions and pending states
func (s *FirestoreStorage) CleanupExpired(ctx context.Context) (int, error) {
	total := 0
	for _, col := range []*firestore.CollectionRef{s.sessionsCol(), s.pendingCol()} {
		count, err := s.deleteExpired(ctx, col)
		total += count
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *FirestoreStorage) deleteExpired(ctx context.Context, col *firestore.CollectionRef) (int, error) {
	iter := col.Where("expires_at", "<=", s.now().Unix()).Documents(ctx)
	defer iter.Stop()

	count := 0
	batch := s.client.Batch()
	batchSize := 0
	const maxBatchSize = 500 // Firestore batch write limit

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to iterate expired documents in %s: %w", col.ID, err)
		}

		batch.Delete(doc.Ref)
		batchSize++
		count++

		if batchSize >= maxBatchSize {
			if _, err := batch.Commit(ctx); err != nil {
				return count, fmt.Errorf("failed to commit batch: %w", err)
			}
			batch = s.client.Batch()
			batchSize = 0
		}
	}

	if batchSize > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return count, fmt.Errorf("failed to commit final batch: %w", err)
		}
	}
	return count, nil
}

// Close closes the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
