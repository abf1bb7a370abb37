package telemetry

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
)

// chunkSize is one index number plus four 7-field datasets.
const (
	datasetFields    = 7
	datasetsPerChunk = 4
	chunkSize        = 1 + datasetsPerChunk*datasetFields
)

// DocSink mirrors display datasets into the document store.
type DocSink interface {
	InsertDataset(ctx context.Context, info *equipment.DisplayDeviceInfo) error
}

// DisplayHandler processes +/status/dispDevice messages.
//
// Each dataset is written to the relational store and the document
// mirror independently: one sink failing is logged and never aborts the
// other.
type DisplayHandler struct {
	repo   equipment.Repository
	docs   DocSink
	logger *logging.Logger
}

// NewDisplayHandler wires a display-device handler. docs may be nil when
// the document mirror is disabled.
func NewDisplayHandler(repo equipment.Repository, docs DocSink, logger *logging.Logger) *DisplayHandler {
	return &DisplayHandler{
		repo:   repo,
		docs:   docs,
		logger: logger.With("component", "display"),
	}
}

// Handle parses one chunked display payload and persists every complete
// dataset.
func (h *DisplayHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	tokens := flattenTokens(string(payload))
	h.logger.Info("display status received",
		"topic", topic,
		"payload", strings.Join(tokens, " | "))

	id := topicDeviceID(topic)
	equipType, equipID := equipment.DecomposeID(id)
	if equipType == "" {
		h.logger.Warn("invalid device id in display topic", "topic", topic)
		return nil
	}

	for chunk := 0; chunk+1 < len(tokens); chunk += chunkSize {
		indexNo, err := strconv.Atoi(tokens[chunk])
		if err != nil {
			h.logger.Warn("invalid chunk index number", "token", tokens[chunk])
			indexNo = -1
		}

		datasets := parseDatasets(tokens, chunk+1)
		h.logger.Debug("display chunk parsed", "index_no", indexNo, "datasets", len(datasets))

		for i, ds := range datasets {
			info := ds
			info.Type = equipType
			info.EquipmentID = equipID
			info.DatasetIndex = datasetsPerChunk*(indexNo-1) + i

			if err := h.repo.CreateDisplayInfo(ctx, &info); err != nil {
				h.logger.Error("display insert failed",
					"device", id, "dataset", info.DatasetIndex, "error", err)
			}
			if h.docs != nil {
				if err := h.docs.InsertDataset(ctx, &info); err != nil {
					h.logger.Error("display mirror failed",
						"device", id, "dataset", info.DatasetIndex, "error", err)
				}
			}
		}
	}
	return nil
}

// flattenTokens splits a payload on newlines and pipes, trimming
// whitespace and discarding empty tokens.
func flattenTokens(payload string) []string {
	var out []string
	for _, line := range strings.Split(payload, "\n") {
		for _, tok := range strings.Split(line, "|") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// parseDatasets reads up to four 7-field datasets starting at offset. An
// incomplete trailing dataset ends the chunk.
//
// Token order within a dataset is green-first: led_g, led_r, cur_g,
// cur_r, cur_off_g, cur_off_r, temp. LED voltages arrive in tenths;
// temperature is a sign-extended raw value offset by 400 and scaled by
// ten.
func parseDatasets(tokens []string, offset int) []equipment.DisplayDeviceInfo {
	var out []equipment.DisplayDeviceInfo
	for i := 0; i < datasetsPerChunk; i++ {
		start := offset + i*datasetFields
		if start+datasetFields-1 >= len(tokens) {
			break
		}

		var abnormal bool
		parse := func(s string) int {
			v, err := strconv.Atoi(s)
			if err != nil {
				abnormal = true
				return 0
			}
			return v
		}

		info := equipment.DisplayDeviceInfo{
			VoltageGreen:    parse(tokens[start]) / 10,
			VoltageRed:      parse(tokens[start+1]) / 10,
			CurrentGreen:    parse(tokens[start+2]),
			CurrentRed:      parse(tokens[start+3]),
			OffCurrentGreen: parse(tokens[start+4]),
			OffCurrentRed:   parse(tokens[start+5]),
			Temperature:     parseTemperature(tokens[start+6], &abnormal),
		}
		_ = abnormal // parse failures substitute zero; persistence proceeds
		out = append(out, info)
	}
	return out
}

// parseTemperature converts a raw display temperature into °C.
func parseTemperature(s string, abnormal *bool) int {
	raw, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		*abnormal = true
		return 0
	}
	signed := SignExtend32(raw)
	return int(math.Round(float64(signed-400) / 10.0))
}
