// Package stream provides DynamoDB Streams handlers that keep embedded
// reference sequences consistent after entity deletes.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/murmur/graph"
	"github.com/jacentio/murmur/model"
)

// Pruner removes dangling ids from reference sequences.
type Pruner interface {
	Prune(ctx context.Context, e graph.Edge, ownerIDs []string, targetID string) (int, error)
}

// Handler processes DynamoDB stream events for reference pruning.
type Handler struct {
	pruner   Pruner
	registry *graph.Registry
	logger   *slog.Logger
}

// NewHandler creates a new stream handler over the built-in edges.
func NewHandler(p Pruner, logger *slog.Logger) *Handler {
	return NewHandlerWithRegistry(p, graph.DefaultRegistry(), logger)
}

// NewHandlerWithRegistry creates a stream handler pruning the edges in r.
func NewHandlerWithRegistry(p Pruner, r *graph.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		pruner:   p,
		registry: r,
		logger:   logger,
	}
}

// HandleReconcile processes DynamoDB stream events and prunes references to
// removed entities. It is designed to be used as an AWS Lambda handler; the
// first failure aborts the batch so Lambda retries it.
func (h *Handler) HandleReconcile(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeRemove) {
		return nil
	}

	old := record.Change.OldImage
	kind, err := model.ParseKind(getStringAttr(old, "_kind"))
	if err != nil {
		// Unique-constraint rows and images without _kind carry no references.
		return nil
	}
	id := getStringAttr(old, model.FieldID)
	if id == "" {
		id = getStringAttr(record.Change.Keys, model.FieldID)
	}
	if id == "" {
		return fmt.Errorf("remove event %s: %s image has no id", record.EventID, kind)
	}

	pruned := 0
	for _, e := range h.registry.ReferencesTo(kind) {
		if e.Inverse == "" {
			continue
		}
		owners := getRefsAttr(old, e.Inverse)
		if len(owners) == 0 {
			continue
		}
		n, err := h.pruner.Prune(ctx, e, owners, id)
		pruned += n
		if err != nil {
			return fmt.Errorf("reconcile %s %s: %w", kind, id, err)
		}
	}

	h.logger.Info("reconciled removed entity",
		"kind", kind,
		"id", id,
		"version", getNumberAttr(old, "_version"),
		"pruned", pruned,
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getStringListAttr extracts a string list attribute from a DynamoDB stream image.
func getStringListAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeList {
			var result []string
			for _, item := range v.List() {
				if item.DataType() == events.DataTypeString {
					result = append(result, item.String())
				}
			}
			return result
		}
	}
	return nil
}

// getRefsAttr reads a single reference or a reference list as a slice.
func getRefsAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	if s := getStringAttr(image, key); s != "" {
		return []string{s}
	}
	return getStringListAttr(image, key)
}
