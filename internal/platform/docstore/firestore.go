package docstore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	provider *Provider
}

func NewFirestoreStore(provider *Provider) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("docstore: firestore provider is required")
	}
	return &FirestoreStore{provider: provider}, nil
}

func (s *FirestoreStore) Get(ctx context.Context, path string) (Document, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return Document{}, err
	}
	snap, err := client.Doc(strings.Trim(path, "/")).Get(ctx)
	if err != nil {
		return Document{}, wrapError("docstore.get", err)
	}
	return decodeSnapshot(snap), nil
}

func (s *FirestoreStore) Create(ctx context.Context, collection, id string, fields Fields) (string, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return "", err
	}
	coll := client.Collection(strings.Trim(collection, "/"))
	if coll == nil {
		return "", errors.New("docstore: invalid collection path " + collection)
	}
	ref := coll.NewDoc()
	if id != "" {
		ref = coll.Doc(id)
	}
	if _, err := ref.Create(ctx, fields.Interface()); err != nil {
		return "", wrapError("docstore.create", err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Patch(ctx context.Context, path string, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	fsUpdates := make([]firestore.Update, 0, len(updates))
	for _, update := range updates {
		fsUpdates = append(fsUpdates, firestore.Update{Path: update.Path, Value: update.Value.Interface()})
	}
	if _, err := client.Doc(strings.Trim(path, "/")).Update(ctx, fsUpdates); err != nil {
		return wrapError("docstore.patch", err)
	}
	return nil
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Collection(strings.Trim(q.Collection, "/"))
	if coll == nil {
		return nil, errors.New("docstore: invalid collection path " + q.Collection)
	}
	query := coll.Query
	for _, filter := range q.Where {
		query = query.Where(filter.Field, "==", filter.Value.Interface())
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()
	var docs []Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrapError("docstore.query", err)
		}
		docs = append(docs, decodeSnapshot(snap))
	}
	return docs, nil
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) Document {
	return Document{
		ID:     snap.Ref.ID,
		Path:   relativePath(snap.Ref.Path),
		Fields: FieldsFromMap(snap.Data()),
	}
}

// relativePath strips the "projects/../databases/../documents/" prefix.
func relativePath(full string) string {
	const marker = "/documents/"
	if idx := strings.Index(full, marker); idx >= 0 {
		return full[idx+len(marker):]
	}
	return full
}
