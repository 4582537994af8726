package signup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"roadside-portal/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ApplicationStore persists submitted applications
type ApplicationStore interface {
	SaveApplication(ctx context.Context, app *Application) error
	GetApplication(ctx context.Context, id string) (*Application, error)
}

// MemoryApplicationStore implements ApplicationStore using an in-memory map
type MemoryApplicationStore struct {
	mu   sync.RWMutex
	apps map[string]Application
}

func NewMemoryApplicationStore() *MemoryApplicationStore {
	return &MemoryApplicationStore{apps: make(map[string]Application)}
}

func (m *MemoryApplicationStore) SaveApplication(ctx context.Context, app *Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.apps[app.ID]; exists {
		return fmt.Errorf("application %s: %w", app.ID, storage.ErrAlreadyExists)
	}
	m.apps[app.ID] = *app
	return nil
}

func (m *MemoryApplicationStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	app, exists := m.apps[id]
	if !exists {
		return nil, fmt.Errorf("application %s: %w", id, storage.ErrNotFound)
	}
	return &app, nil
}

// DynamoDBApplicationStore implements ApplicationStore using DynamoDB
type DynamoDBApplicationStore struct {
	client    storage.DynamoDBAPI
	tableName string
}

func NewDynamoDBApplicationStore(client storage.DynamoDBAPI, tableName string) *DynamoDBApplicationStore {
	return &DynamoDBApplicationStore{client: client, tableName: tableName}
}

func (d *DynamoDBApplicationStore) SaveApplication(ctx context.Context, app *Application) error {
	item, err := attributevalue.MarshalMap(app)
	if err != nil {
		return fmt.Errorf("failed to marshal application: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("application %s: %w", app.ID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to put application: %w", err)
	}
	return nil
}

func (d *DynamoDBApplicationStore) GetApplication(ctx context.Context, id string) (*Application, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("application %s: %w", id, storage.ErrNotFound)
	}

	var app Application
	if err := attributevalue.UnmarshalMap(result.Item, &app); err != nil {
		return nil, fmt.Errorf("failed to unmarshal application: %w", err)
	}
	return &app, nil
}
