package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/murmur/model"
)

// TableAPI is the subset of the DynamoDB client used to manage tables.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

// TableDefinitions returns the CreateTable inputs for every entity table and
// the unique constraints table. Entity tables stream old images so removals
// can be reconciled.
func TableDefinitions(config Config) []*dynamodb.CreateTableInput {
	config.validate()

	defs := make([]*dynamodb.CreateTableInput, 0, len(model.Kinds)+1)
	for _, kind := range model.Kinds {
		attrs := []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		}
		var gsis []types.GlobalSecondaryIndex
		for _, idx := range config.Indexes {
			if idx.Kind != kind {
				continue
			}
			attrs = append(attrs, types.AttributeDefinition{
				AttributeName: aws.String(idx.Field),
				AttributeType: types.ScalarAttributeTypeS,
			})
			gsis = append(gsis, types.GlobalSecondaryIndex{
				IndexName: aws.String(idx.Name),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(idx.Field), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			})
		}

		defs = append(defs, &dynamodb.CreateTableInput{
			TableName: aws.String(config.TableName(kind)),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions:   attrs,
			GlobalSecondaryIndexes: gsis,
			BillingMode:            types.BillingModePayPerRequest,
			StreamSpecification: &types.StreamSpecification{
				StreamEnabled:  aws.Bool(true),
				StreamViewType: types.StreamViewTypeNewAndOldImages,
			},
		})
	}

	defs = append(defs, &dynamodb.CreateTableInput{
		TableName: aws.String(config.UniqueTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return defs
}

// CreateTables creates every table that does not exist yet and waits up to
// wait for each to become active. A zero wait skips waiting.
func CreateTables(ctx context.Context, client TableAPI, config Config, wait time.Duration) ([]string, error) {
	var created []string
	for _, def := range TableDefinitions(config) {
		_, err := client.CreateTable(ctx, def)
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create table %s: %w", aws.ToString(def.TableName), err)
		}
		created = append(created, aws.ToString(def.TableName))
	}

	if wait <= 0 {
		return created, nil
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	for _, name := range created {
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, wait); err != nil {
			return created, fmt.Errorf("wait for table %s: %w", name, err)
		}
	}
	return created, nil
}

// DeleteTables deletes every table named by config. Missing tables are skipped.
func DeleteTables(ctx context.Context, client TableAPI, config Config) error {
	var errs []error
	for _, def := range TableDefinitions(config) {
		_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: def.TableName})
		var missing *types.ResourceNotFoundException
		if err != nil && !errors.As(err, &missing) {
			errs = append(errs, fmt.Errorf("delete table %s: %w", aws.ToString(def.TableName), err))
		}
	}
	return errors.Join(errs...)
}
