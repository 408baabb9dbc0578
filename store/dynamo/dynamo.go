// Package dynamo is a store backend on Amazon DynamoDB.
//
// Each entity kind lives in its own table keyed by "id". Unique values are
// claimed as records in a separate constraints table, written in the same
// TransactWriteItems call as the entity with an attribute_not_exists(pk)
// condition, so concurrent inserts of the same username cannot both commit.
// Reference-sequence appends use list_append and never read the document,
// so concurrent appends are both kept.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/murmur/constraint"
	"github.com/jacentio/murmur/internal/shard"
	"github.com/jacentio/murmur/model"
	"github.com/jacentio/murmur/store"
)

// Internal attributes stored alongside every document.
const (
	attrVersion = "_version"
	attrKind    = "_kind"
)

// API is the subset of the DynamoDB client used by the backend.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Backend implements store.Backend on DynamoDB.
type Backend struct {
	client API
	config Config
}

var _ store.Backend = (*Backend)(nil)

// New creates a new Backend instance.
func New(client API, config Config) *Backend {
	config.validate()
	return &Backend{
		client: client,
		config: config,
	}
}

// Config returns the effective configuration.
func (b *Backend) Config() Config {
	return b.config
}

// Insert implements store.Backend.
func (b *Backend) Insert(ctx context.Context, kind model.Kind, doc model.Document, uniques []store.UniqueValue) error {
	item, err := attributevalue.MarshalMap(model.EncodeWire(doc))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	item[attrVersion] = &types.AttributeValueMemberN{Value: "1"}
	item[attrKind] = &types.AttributeValueMemberS{Value: string(kind)}

	items := make([]types.TransactWriteItem, 0, len(uniques)+1)
	for _, u := range uniques {
		items = append(items, b.claimUnique(kind, u.Field, u.Value, doc.ID()))
	}

	entityPutIndex := len(items)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(b.config.TableName(kind)),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})

	_, err = b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapCreateTransactionError(err, kind, uniques, entityPutIndex)
}

// Get implements store.Backend.
func (b *Backend) Get(ctx context.Context, kind model.Kind, id string) (*store.Item, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.config.TableName(kind)),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, store.ErrNotFound
	}
	return unmarshalItem(kind, result.Item)
}

// Update implements store.Backend.
func (b *Backend) Update(ctx context.Context, kind model.Kind, id string, set model.Document, swaps []store.UniqueSwap, expectedVersion int64) error {
	update, err := b.buildUpdate(kind, id, set, expectedVersion)
	if err != nil {
		return err
	}

	// Fast path: no unique claims change
	if len(swaps) == 0 {
		_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 update.TableName,
			Key:                       update.Key,
			UpdateExpression:          update.UpdateExpression,
			ConditionExpression:       update.ConditionExpression,
			ExpressionAttributeNames:  update.ExpressionAttributeNames,
			ExpressionAttributeValues: update.ExpressionAttributeValues,
		})
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return store.ErrConcurrentModification
		}
		return err
	}

	// For each changed field: delete old constraint, create new constraint
	items := []types.TransactWriteItem{}
	claimIndex := make(map[int]store.UniqueSwap)
	for _, sw := range swaps {
		if sw.Old != "" {
			items = append(items, b.releaseUnique(kind, sw.Field, sw.Old))
		}
		claimIndex[len(items)] = sw
		items = append(items, b.claimUnique(kind, sw.Field, sw.New, id))
	}
	items = append(items, types.TransactWriteItem{Update: update})

	_, err = b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapUpdateTransactionError(err, kind, claimIndex)
}

// Delete implements store.Backend.
func (b *Backend) Delete(ctx context.Context, kind model.Kind, id string) error {
	current, err := b.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	schema, err := model.SchemaFor(kind)
	if err != nil {
		return err
	}

	items := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:           aws.String(b.config.TableName(kind)),
			Key:                 idKey(id),
			ConditionExpression: aws.String("#version = :expected_version"),
			ExpressionAttributeNames: map[string]string{
				"#version": attrVersion,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expected_version": versionValue(current.Version),
			},
		},
	}}
	for _, field := range schema.UniqueFields() {
		if v := current.Doc.String(field); v != "" {
			items = append(items, b.releaseUnique(kind, field, v))
		}
	}

	_, err = b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if isConditionFailure(err, 0) {
		return store.ErrConcurrentModification
	}
	return err
}

// Find implements store.Backend. The first equality condition on an indexed
// field is served by Query; everything else is a filtered Scan. Sorting and
// limits are applied after all pages are read.
func (b *Backend) Find(ctx context.Context, kind model.Kind, q store.Query) ([]model.Document, error) {
	table := aws.String(b.config.TableName(kind))

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var filters []string
	var keyCond, indexName string

	for i, c := range q.Where {
		name, value := fmt.Sprintf("#w%d", i), fmt.Sprintf(":w%d", i)
		names[name] = c.Field
		values[value] = &types.AttributeValueMemberS{Value: c.Value}

		if c.Op == store.OpEq && keyCond == "" {
			if idx, ok := b.config.index(kind, c.Field); ok {
				indexName = idx
				keyCond = fmt.Sprintf("%s = %s", name, value)
				continue
			}
		}
		switch c.Op {
		case store.OpEq:
			filters = append(filters, fmt.Sprintf("%s = %s", name, value))
		case store.OpContains:
			filters = append(filters, fmt.Sprintf("contains(%s, %s)", name, value))
		default:
			return nil, fmt.Errorf("%w: unknown operator %d", store.ErrInvalidQuery, c.Op)
		}
	}

	var filterExpr *string
	if len(filters) > 0 {
		filterExpr = aws.String(strings.Join(filters, " AND "))
	}
	if len(names) == 0 {
		names, values = nil, nil
	}

	var raws []map[string]types.AttributeValue
	if keyCond != "" {
		paginator := dynamodb.NewQueryPaginator(b.client, &dynamodb.QueryInput{
			TableName:                 table,
			IndexName:                 aws.String(indexName),
			KeyConditionExpression:    aws.String(keyCond),
			FilterExpression:          filterExpr,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			raws = append(raws, page.Items...)
		}
	} else {
		paginator := dynamodb.NewScanPaginator(b.client, &dynamodb.ScanInput{
			TableName:                 table,
			FilterExpression:          filterExpr,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, err
			}
			raws = append(raws, page.Items...)
		}
	}

	docs := make([]model.Document, 0, len(raws))
	for _, raw := range raws {
		item, err := unmarshalItem(kind, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, item.Doc)
	}
	return q.Apply(docs), nil
}

// LookupUnique implements store.Backend.
func (b *Backend) LookupUnique(ctx context.Context, kind model.Kind, field, value string) (string, bool, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.config.UniqueTable),
		Key:            uniqueKey(kind, field, value),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, err
	}
	if result.Item == nil {
		return "", false, nil
	}
	owner, _ := result.Item["owner_id"].(*types.AttributeValueMemberS)
	if owner == nil {
		return "", true, nil
	}
	return owner.Value, true, nil
}

// maxEdgeAttempts bounds how often ApplyEdges retries a write that lost a
// race against a newer write to the same document.
const maxEdgeAttempts = 10

// errLostRace marks a conditional edge write that failed on a document that
// still exists.
var errLostRace = errors.New("edge write lost race")

// ApplyEdges implements store.Backend.
//
// Append-only writes are conditioned on updatedAt < at, so the timestamp stays
// strictly increasing without reading the document. Writes that remove
// references read the document first and are conditioned on its version.
// A write that loses a race is retried with at moved past the stored
// updatedAt, so concurrent appends all land.
func (b *Backend) ApplyEdges(ctx context.Context, ops []store.EdgeOp, at time.Time) error {
	groups := groupEdges(ops)
	for attempt := 1; ; attempt++ {
		stored, err := b.applyEdgesOnce(ctx, groups, at)
		if !errors.Is(err, errLostRace) {
			return err
		}
		if attempt >= maxEdgeAttempts {
			return store.ErrConcurrentModification
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !at.After(stored) {
			at = stored.Add(time.Nanosecond)
		}
	}
}

// applyEdgesOnce makes one write attempt. On a lost race it returns the
// updatedAt stored on the document whose condition failed.
func (b *Backend) applyEdgesOnce(ctx context.Context, groups []edgeGroup, at time.Time) (time.Time, error) {
	updates := make([]*types.Update, 0, len(groups))
	for _, g := range groups {
		var update *types.Update
		var err error
		if g.removes() {
			update, err = b.buildRewrite(ctx, g, at)
		} else {
			update, err = b.buildAppend(g, at)
		}
		if err != nil {
			return time.Time{}, err
		}
		updates = append(updates, update)
	}

	if len(updates) == 1 {
		u := updates[0]
		_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 u.TableName,
			Key:                       u.Key,
			UpdateExpression:          u.UpdateExpression,
			ConditionExpression:       u.ConditionExpression,
			ExpressionAttributeNames:  u.ExpressionAttributeNames,
			ExpressionAttributeValues: u.ExpressionAttributeValues,
		})
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return b.classifyEdgeFailure(ctx, groups[0])
		}
		return time.Time{}, err
	}

	items := make([]types.TransactWriteItem, len(updates))
	for i, u := range updates {
		items[i] = types.TransactWriteItem{Update: u}
	}
	_, err := b.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return b.classifyEdgeFailure(ctx, groups[i])
			}
		}
	}
	return time.Time{}, err
}

// edgeGroup collects the ops touching one document.
type edgeGroup struct {
	kind model.Kind
	id   string
	ops  []store.EdgeOp
}

func (g edgeGroup) removes() bool {
	for _, op := range g.ops {
		if op.Remove {
			return true
		}
	}
	return false
}

// groupEdges groups ops by document, keeping first-seen order. DynamoDB
// transactions may touch each item only once.
func groupEdges(ops []store.EdgeOp) []edgeGroup {
	var groups []edgeGroup
	index := map[string]int{}
	for _, op := range ops {
		k := string(op.Kind) + "#" + op.ID
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, edgeGroup{kind: op.Kind, id: op.ID})
		}
		groups[i].ops = append(groups[i].ops, op)
	}
	return groups
}

// buildAppend appends every target with list_append, field by field in op order.
func (b *Backend) buildAppend(g edgeGroup, at time.Time) (*types.Update, error) {
	var fields []string
	targets := map[string][]string{}
	for _, op := range g.ops {
		if _, ok := targets[op.Field]; !ok {
			fields = append(fields, op.Field)
		}
		targets[op.Field] = append(targets[op.Field], op.Target)
	}

	names := map[string]string{
		"#id":         model.FieldID,
		"#updated_at": model.FieldUpdatedAt,
		"#version":    attrVersion,
	}
	values := map[string]types.AttributeValue{
		":at":    &types.AttributeValueMemberS{Value: model.FormatTime(at)},
		":one":   &types.AttributeValueMemberN{Value: "1"},
		":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
	}
	var setClauses []string
	for i, field := range fields {
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":f%d", i)
		names[name] = field
		values[value] = stringList(targets[field])
		setClauses = append(setClauses, fmt.Sprintf("%s = list_append(if_not_exists(%s, :empty), %s)", name, name, value))
	}
	setClauses = append(setClauses, "#updated_at = :at", "#version = #version + :one")

	return &types.Update{
		TableName:                 aws.String(b.config.TableName(g.kind)),
		Key:                       idKey(g.id),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#id) AND #updated_at < :at"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

// buildRewrite reads the document, applies the ops in memory and writes the
// resulting sequences back under an optimistic version check.
func (b *Backend) buildRewrite(ctx context.Context, g edgeGroup, at time.Time) (*types.Update, error) {
	current, err := b.Get(ctx, g.kind, g.id)
	if err != nil {
		return nil, err
	}

	var fields []string
	seqs := map[string][]string{}
	for _, op := range g.ops {
		refs, ok := seqs[op.Field]
		if !ok {
			refs = current.Doc.Refs(op.Field)
			fields = append(fields, op.Field)
		}
		seqs[op.Field] = op.Apply(refs)
	}

	stamp := at.UTC()
	if prev := current.Doc.UpdatedAt(); !stamp.After(prev) {
		stamp = prev.Add(time.Nanosecond)
	}

	names := map[string]string{
		"#updated_at": model.FieldUpdatedAt,
		"#version":    attrVersion,
	}
	values := map[string]types.AttributeValue{
		":at":               &types.AttributeValueMemberS{Value: model.FormatTime(stamp)},
		":one":              &types.AttributeValueMemberN{Value: "1"},
		":expected_version": versionValue(current.Version),
	}
	var setClauses []string
	for i, field := range fields {
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":f%d", i)
		names[name] = field
		values[value] = stringList(seqs[field])
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", name, value))
	}
	setClauses = append(setClauses, "#updated_at = :at", "#version = #version + :one")

	return &types.Update{
		TableName:                 aws.String(b.config.TableName(g.kind)),
		Key:                       idKey(g.id),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String("#version = :expected_version"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}, nil
}

// classifyEdgeFailure distinguishes a missing owner from a lost race. A lost
// race reports the owner's stored updatedAt.
func (b *Backend) classifyEdgeFailure(ctx context.Context, g edgeGroup) (time.Time, error) {
	current, err := b.Get(ctx, g.kind, g.id)
	if err != nil {
		return time.Time{}, err
	}
	return current.Doc.UpdatedAt(), errLostRace
}

// buildUpdate builds the SET expression for a field update with optimistic locking.
func (b *Backend) buildUpdate(kind model.Kind, id string, set model.Document, expectedVersion int64) (*types.Update, error) {
	wire, err := attributevalue.MarshalMap(model.EncodeWire(set))
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}

	var setClauses []string
	exprNames := map[string]string{
		"#version": attrVersion,
	}
	exprValues := map[string]types.AttributeValue{
		":one":              &types.AttributeValueMemberN{Value: "1"},
		":expected_version": versionValue(expectedVersion),
	}

	i := 0
	for _, k := range sortedKeys(wire) {
		// Skip managed fields that never change
		if k == model.FieldID || k == model.FieldCreatedAt || model.IsInternal(k) {
			continue
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = wire[k]
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
		i++
	}
	setClauses = append(setClauses, "#version = #version + :one")

	return &types.Update{
		TableName:                 aws.String(b.config.TableName(kind)),
		Key:                       idKey(id),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String("#version = :expected_version"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	}, nil
}

// claimUnique builds the conditional put that claims a unique value.
func (b *Backend) claimUnique(kind model.Kind, field, value, owner string) types.TransactWriteItem {
	key := uniqueKey(kind, field, value)
	item := map[string]types.AttributeValue{
		"kind":        &types.AttributeValueMemberS{Value: string(kind)},
		"field_name":  &types.AttributeValueMemberS{Value: field},
		"field_value": &types.AttributeValueMemberS{Value: value},
		"owner_id":    &types.AttributeValueMemberS{Value: owner},
	}
	for k, v := range key {
		item[k] = v
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(b.config.UniqueTable),
			Item:      item,
			// Fails if another entity already has this unique value
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

// releaseUnique builds the delete of a unique constraint record.
func (b *Backend) releaseUnique(kind model.Kind, field, value string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(b.config.UniqueTable),
			Key:       uniqueKey(kind, field, value),
		},
	}
}

// mapCreateTransactionError maps DynamoDB transaction errors for Insert.
// Items before entityPutIndex are unique claims, in the order of uniques.
func mapCreateTransactionError(err error, kind model.Kind, uniques []store.UniqueValue, entityPutIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if i == entityPutIndex {
				return store.ErrAlreadyExists
			}
			if i < len(uniques) {
				return constraint.NewUniquenessError(kind, uniques[i].Field, uniques[i].Value)
			}
		}
	}

	return err
}

// mapUpdateTransactionError maps DynamoDB transaction errors for Update.
// claimIndex maps item positions of unique claims to their swap.
func mapUpdateTransactionError(err error, kind model.Kind, claimIndex map[int]store.UniqueSwap) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if sw, ok := claimIndex[i]; ok {
				return constraint.NewUniquenessError(kind, sw.Field, sw.New)
			}
			return store.ErrConcurrentModification
		}
	}

	return err
}

// isConditionFailure reports whether err cancelled a transaction because of
// the condition on item index.
func isConditionFailure(err error, index int) bool {
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) || index >= len(txErr.CancellationReasons) {
		return false
	}
	code := txErr.CancellationReasons[index].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

// unmarshalItem converts a DynamoDB item into a store item.
func unmarshalItem(kind model.Kind, raw map[string]types.AttributeValue) (*store.Item, error) {
	var wire map[string]any
	if err := attributevalue.UnmarshalMap(raw, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	doc, err := model.DecodeWire(kind, wire)
	if err != nil {
		return nil, err
	}

	item := &store.Item{Doc: doc}
	if v, ok := raw[attrVersion].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	return item, nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func uniqueKey(kind model.Kind, field, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: shard.UniqueConstraintPK(string(kind), field, value)},
		"sk": &types.AttributeValueMemberS{Value: shard.UniqueSortKey},
	}
}

func versionValue(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

func stringList(refs []string) types.AttributeValue {
	list := make([]types.AttributeValue, len(refs))
	for i, ref := range refs {
		list[i] = &types.AttributeValueMemberS{Value: ref}
	}
	return &types.AttributeValueMemberL{Value: list}
}

func sortedKeys(m map[string]types.AttributeValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
