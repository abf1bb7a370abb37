package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// captureDocs records document-mirror writes.
type captureDocs struct {
	inserted []*equipment.DisplayDeviceInfo
	err      error
}

func (c *captureDocs) InsertDataset(ctx context.Context, info *equipment.DisplayDeviceInfo) error {
	if c.err != nil {
		return c.err
	}
	copied := *info
	c.inserted = append(c.inserted, &copied)
	return nil
}

func TestDisplayHandle_SingleDataset(t *testing.T) {
	repo := &handlerRepo{}
	docs := &captureDocs{}
	h := NewDisplayHandler(repo, docs, logging.Default())

	// One index token and one 7-field dataset.
	payload := "1|10|20|3|4|5|6|7"
	if err := h.Handle(context.Background(), "AGL12/status/dispDevice", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(repo.displays) != 1 {
		t.Fatalf("displays = %d, want 1", len(repo.displays))
	}
	got := repo.displays[0]
	want := equipment.DisplayDeviceInfo{
		DatasetIndex:    0,
		Type:            "AGL",
		EquipmentID:     12,
		VoltageGreen:    1,
		VoltageRed:      2,
		CurrentGreen:    3,
		CurrentRed:      4,
		OffCurrentGreen: 5,
		OffCurrentRed:   6,
		Temperature:     -39, // round((7-400)/10)
	}
	if *got != want {
		t.Errorf("dataset = %+v, want %+v", *got, want)
	}

	if len(docs.inserted) != 1 || *docs.inserted[0] != want {
		t.Errorf("mirrored = %+v", docs.inserted)
	}
}

func TestDisplayHandle_FullChunk(t *testing.T) {
	repo := &handlerRepo{}
	h := NewDisplayHandler(repo, nil, logging.Default())

	// Index 2 with four full datasets: dataset_index = 4,5,6,7.
	tokens := []string{"2"}
	for i := 0; i < 4; i++ {
		tokens = append(tokens, "10", "20", "3", "4", "5", "6", "400")
	}
	payload := strings.Join(tokens, "\n")

	if err := h.Handle(context.Background(), "DGL3/status/dispDevice", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(repo.displays) != 4 {
		t.Fatalf("displays = %d, want 4", len(repo.displays))
	}
	for i, ds := range repo.displays {
		if ds.DatasetIndex != 4+i {
			t.Errorf("dataset %d index = %d, want %d", i, ds.DatasetIndex, 4+i)
		}
		if ds.Temperature != 0 { // (400-400)/10
			t.Errorf("dataset %d temperature = %d", i, ds.Temperature)
		}
	}
}

func TestDisplayHandle_NegativeTemperature(t *testing.T) {
	repo := &handlerRepo{}
	h := NewDisplayHandler(repo, nil, logging.Default())

	// Raw 4294967000 has bit 31 set: sign-extends to -296, so the
	// reading is round((-296-400)/10) = -70.
	payload := "1|10|20|3|4|5|6|4294967000"
	if err := h.Handle(context.Background(), "AGL12/status/dispDevice", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(repo.displays) != 1 || repo.displays[0].Temperature != -70 {
		t.Errorf("displays = %+v, want temperature -70", repo.displays)
	}
}

func TestDisplayHandle_IncompleteDatasetSkipped(t *testing.T) {
	repo := &handlerRepo{}
	h := NewDisplayHandler(repo, nil, logging.Default())

	// First dataset complete, second only 3 tokens.
	payload := "1|10|20|3|4|5|6|7|99|99|99"
	if err := h.Handle(context.Background(), "AGL12/status/dispDevice", []byte(payload)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(repo.displays) != 1 {
		t.Errorf("displays = %d, want only the complete dataset", len(repo.displays))
	}
}

func TestDisplayHandle_InvalidDeviceDropped(t *testing.T) {
	repo := &handlerRepo{}
	h := NewDisplayHandler(repo, nil, logging.Default())

	if err := h.Handle(context.Background(), "XYZ1/status/dispDevice",
		[]byte("1|10|20|3|4|5|6|7")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(repo.displays) != 0 {
		t.Error("invalid device persisted datasets")
	}
}

func TestDisplayHandle_MirrorFailureDoesNotAbortRDB(t *testing.T) {
	repo := &handlerRepo{}
	docs := &captureDocs{err: errors.New("firestore down")}
	h := NewDisplayHandler(repo, docs, logging.Default())

	if err := h.Handle(context.Background(), "AGL12/status/dispDevice",
		[]byte("1|10|20|3|4|5|6|7")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(repo.displays) != 1 {
		t.Error("RDB write missing despite independent sinks")
	}
}

func TestFlattenTokens(t *testing.T) {
	got := flattenTokens("1| 10 |20\n3||4\n\n5")
	want := []string{"1", "10", "20", "3", "4", "5"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
