package docstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
)

// defaultOpTimeout bounds individual document operations.
const defaultOpTimeout = 10 * time.Second

// DisplayDocument is the dashboard-facing shape of one display-device
// dataset. The document id doubles as the Id field so dashboard queries
// can reference documents without metadata access.
type DisplayDocument struct {
	ID              string    `firestore:"id"`
	DeviceID        int       `firestore:"deviceid"`
	EquipmentType   string    `firestore:"equipment_type"`
	EquipmentID     int       `firestore:"equipment_id"`
	VoltageRed      int       `firestore:"voltage_red"`
	VoltageGreen    int       `firestore:"voltage_green"`
	CurrentRed      int       `firestore:"current_red"`
	CurrentGreen    int       `firestore:"current_green"`
	OffCurrentRed   int       `firestore:"off_current_red"`
	OffCurrentGreen int       `firestore:"off_current_green"`
	Temperature     int       `firestore:"temperature"`
	UpdatedAt       time.Time `firestore:"updated_at"`
}

// NewDisplayDocument builds a document from a dataset with a fresh UUID id
// and the current UTC time.
func NewDisplayDocument(info *equipment.DisplayDeviceInfo) DisplayDocument {
	return DisplayDocument{
		ID:              uuid.NewString(),
		DeviceID:        info.DatasetIndex,
		EquipmentType:   info.Type,
		EquipmentID:     info.EquipmentID,
		VoltageRed:      info.VoltageRed,
		VoltageGreen:    info.VoltageGreen,
		CurrentRed:      info.CurrentRed,
		CurrentGreen:    info.CurrentGreen,
		OffCurrentRed:   info.OffCurrentRed,
		OffCurrentGreen: info.OffCurrentGreen,
		Temperature:     info.Temperature,
		UpdatedAt:       time.Now().UTC(),
	}
}

// Store wraps a Firestore client bound to one collection.
//
// All methods are safe for concurrent use; the underlying client manages
// its own connection pool.
type Store struct {
	client     *firestore.Client
	collection string
}

// Connect creates a Firestore client from a service-account key file.
// Returns ErrDisabled when the mirror is off in configuration.
func Connect(ctx context.Context, cfg config.DocStoreConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID,
		option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Store{
		client:     client,
		collection: cfg.Collection,
	}, nil
}

// Insert writes one document keyed by its own ID field.
func (s *Store) Insert(ctx context.Context, doc DisplayDocument) error {
	if s.client == nil {
		return ErrNotConnected
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	_, err := s.client.Collection(s.collection).Doc(doc.ID).Create(opCtx, doc)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

// InsertDataset mirrors one display-device dataset as a new document.
func (s *Store) InsertDataset(ctx context.Context, info *equipment.DisplayDeviceInfo) error {
	return s.Insert(ctx, NewDisplayDocument(info))
}

// ListAll retrieves every document in the collection. Used by operational
// tooling; the ingest path never reads the mirror.
func (s *Store) ListAll(ctx context.Context) ([]DisplayDocument, error) {
	if s.client == nil {
		return nil, ErrNotConnected
	}

	snaps, err := s.client.Collection(s.collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	out := make([]DisplayDocument, 0, len(snaps))
	for _, snap := range snaps {
		var doc DisplayDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// Update overwrites the document matching doc.ID.
func (s *Store) Update(ctx context.Context, doc DisplayDocument) error {
	if s.client == nil {
		return ErrNotConnected
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultOpTimeout)
	defer cancel()

	_, err := s.client.Collection(s.collection).Doc(doc.ID).Set(opCtx, doc)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
