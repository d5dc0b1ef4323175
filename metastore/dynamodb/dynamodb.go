// Package dynamodb provides a metastore.Store backed by Amazon DynamoDB.
//
// Each project is one item. Updates are optimistic: the new record is written
// with a conditional put on the previous revision, and the read-modify-write
// is retried when another writer got there first.
//
// Table schema:
//   - Partition key: project (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name varanno-metadata \
//	  --attribute-definitions AttributeName=project,AttributeType=S \
//	  --key-schema AttributeName=project,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/varanno/codec"
	"github.com/hupe1980/varanno/metastore"
	"github.com/hupe1980/varanno/model"
)

const (
	attrProject  = "project"
	attrRevision = "revision"
	attrData     = "data"
)

// Client is the subset of the DynamoDB API used by Store.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store is a metastore.Store over a DynamoDB table.
type Store struct {
	client Client
	table  string
	codec  codec.Codec
}

var _ metastore.Store = (*Store)(nil)

// NewStore creates a store over an existing client.
func NewStore(client Client, table string) *Store {
	return &Store{client: client, table: table, codec: codec.Default}
}

// New creates a store using the default AWS configuration chain.
func New(ctx context.Context, table string, optFns ...func(*config.LoadOptions) error) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewStore(dynamodb.NewFromConfig(cfg), table), nil
}

func (s *Store) key(project string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrProject: &types.AttributeValueMemberS{Value: project},
	}
}

// Get implements metastore.Store.
func (s *Store) Get(ctx context.Context, project string) (model.ProjectMetadata, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(project),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.ProjectMetadata{}, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if len(resp.Item) == 0 {
		return metastore.Empty(project), nil
	}

	dataAttr, ok := resp.Item[attrData].(*types.AttributeValueMemberB)
	if !ok {
		return model.ProjectMetadata{}, errors.New("invalid data attribute in DynamoDB")
	}
	var md model.ProjectMetadata
	if err := s.codec.Unmarshal(dataAttr.Value, &md); err != nil {
		return model.ProjectMetadata{}, fmt.Errorf("dynamodb: decode %s: %w", project, err)
	}
	return md, nil
}

// Update implements metastore.Store.
func (s *Store) Update(ctx context.Context, project string, fn metastore.UpdateFunc) (model.ProjectMetadata, error) {
	for attempt := 0; attempt < metastore.MaxRetries; attempt++ {
		cur, err := s.Get(ctx, project)
		if err != nil {
			return model.ProjectMetadata{}, err
		}
		next, err := metastore.Apply(cur, fn)
		if err != nil {
			return model.ProjectMetadata{}, err
		}

		err = s.put(ctx, cur.Revision, next)
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			continue
		}
		if err != nil {
			return model.ProjectMetadata{}, err
		}
		return next, nil
	}
	return model.ProjectMetadata{}, fmt.Errorf("%w: %s", metastore.ErrConflict, project)
}

func (s *Store) put(ctx context.Context, prev uint64, md model.ProjectMetadata) error {
	data, err := s.codec.Marshal(md)
	if err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			attrProject:  &types.AttributeValueMemberS{Value: md.Project},
			attrRevision: &types.AttributeValueMemberN{Value: strconv.FormatUint(md.Revision, 10)},
			attrData:     &types.AttributeValueMemberB{Value: data},
		},
	}
	if prev == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(" + attrProject + ")")
	} else {
		input.ConditionExpression = aws.String(attrRevision + " = :rev")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":rev": &types.AttributeValueMemberN{Value: strconv.FormatUint(prev, 10)},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return err
		}
		return fmt.Errorf("failed to put item to DynamoDB: %w", err)
	}
	return nil
}
