// Package firestore implements storage.Store on Cloud Firestore through the
// Firebase Admin SDK, using the collections and field names of the existing
// web client: top-level "transactions" and "tasks" scoped by userId.
//
// The month and link queries need composite indexes on
// (userId, isRecurring, date) and (userId, linkedTransactionId).
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"moneyboard/internal/core"
	"moneyboard/internal/log"
	"moneyboard/internal/storage"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	transactionsCollection = "transactions"
	tasksCollection        = "tasks"
)

type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// Open initializes a Firebase app for projectID and returns a store on its
// Firestore client. credentialsFile may be empty to use ambient credentials.
func Open(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore client: %w", err)
	}
	slog.InfoContext(ctx, "Firestore store ready", log.FieldComponent, log.ComponentStorage, "project_id", projectID)
	return New(client), nil
}

// New wraps an existing client, for example one pointed at the emulator.
func New(client *firestore.Client) *Store {
	return &Store{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) transactions() *firestore.CollectionRef {
	return s.client.Collection(transactionsCollection)
}

func (s *Store) tasks() *firestore.CollectionRef {
	return s.client.Collection(tasksCollection)
}

func (s *Store) ListMonthTransactions(ctx context.Context, ownerID string, from, to time.Time) ([]core.Transaction, error) {
	q := s.transactions().
		Where("userId", "==", ownerID).
		Where("isRecurring", "==", false).
		Where("date", ">=", from).
		Where("date", "<=", to).
		OrderBy("date", firestore.Desc)
	out, err := collectTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list month transactions: %w", err)
	}
	return out, nil
}

func (s *Store) ListRecurringTemplates(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	q := s.transactions().
		Where("userId", "==", ownerID).
		Where("isRecurring", "==", true)
	out, err := collectTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list recurring templates: %w", err)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	snap, err := s.transactions().Doc(id).Get(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, mapError(err))
	}
	var d transactionDoc
	if err := snap.DataTo(&d); err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	if d.UserID != ownerID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return decodeTransaction(snap.Ref.ID, d), nil
}

func (s *Store) ListTasks(ctx context.Context, ownerID string) ([]core.Task, error) {
	out, err := collectTasks(ctx, s.tasks().Where("userId", "==", ownerID))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	storage.SortTasks(out)
	return out, nil
}

func (s *Store) GetTask(ctx context.Context, ownerID, id string) (core.Task, error) {
	snap, err := s.tasks().Doc(id).Get(ctx)
	if err != nil {
		return core.Task{}, fmt.Errorf("task %s: %w", id, mapError(err))
	}
	var d taskDoc
	if err := snap.DataTo(&d); err != nil {
		return core.Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	if d.UserID != ownerID {
		return core.Task{}, fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	return decodeTask(snap.Ref.ID, d), nil
}

func (s *Store) FindTasksByLink(ctx context.Context, ownerID, templateID string) ([]core.Task, error) {
	q := s.tasks().
		Where("userId", "==", ownerID).
		Where("linkedTransactionId", "==", templateID)
	out, err := collectTasks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find tasks by link: %w", err)
	}
	storage.SortTasks(out)
	return out, nil
}

func (s *Store) ListRecurringOwners(ctx context.Context) ([]string, error) {
	iter := s.transactions().Where("isRecurring", "==", true).Select("userId").Documents(ctx)
	defer iter.Stop()
	seen := map[string]struct{}{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list recurring owners: %w", mapError(err))
		}
		if owner, ok := snap.Data()["userId"].(string); ok && owner != "" {
			seen[owner] = struct{}{}
		}
	}
	owners := make([]string, 0, len(seen))
	for o := range seen {
		owners = append(owners, o)
	}
	slices.Sort(owners)
	return owners, nil
}

func collectTransactions(ctx context.Context, q firestore.Query) ([]core.Transaction, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []core.Transaction
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, mapError(err)
		}
		var d transactionDoc
		if err := snap.DataTo(&d); err != nil {
			slog.WarnContext(ctx, "Skipping undecodable transaction",
				log.FieldComponent, log.ComponentStorage, "id", snap.Ref.ID, log.FieldError, err)
			continue
		}
		out = append(out, decodeTransaction(snap.Ref.ID, d))
	}
}

func collectTasks(ctx context.Context, q firestore.Query) ([]core.Task, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	var out []core.Task
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, mapError(err)
		}
		var d taskDoc
		if err := snap.DataTo(&d); err != nil {
			slog.WarnContext(ctx, "Skipping undecodable task",
				log.FieldComponent, log.ComponentStorage, "id", snap.Ref.ID, log.FieldError, err)
			continue
		}
		out = append(out, decodeTask(snap.Ref.ID, d))
	}
}

// mapError translates gRPC status codes into the store's sentinels.
func mapError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", core.ErrPermissionDenied, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	}
	return err
}

var _ storage.Store = (*Store)(nil)
