package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roadside-portal/internal/lifecycle"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	statusIndex             = "status-index"
	assignedTechnicianIndex = "assigned-technician-index"
)

// DynamoDBAPI interface for mocking
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type DynamoDBJobStorage struct {
	client       DynamoDBAPI
	tableName    string
	updatesTable string
	now          func() time.Time
}

func NewDynamoDBJobStorage(client DynamoDBAPI, tableName, updatesTable string) *DynamoDBJobStorage {
	return &DynamoDBJobStorage{
		client:       client,
		tableName:    tableName,
		updatesTable: updatesTable,
		now:          time.Now,
	}
}

func (d *DynamoDBJobStorage) CreateJob(ctx context.Context, job *Job) error {
	now := d.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Status = lifecycle.Normalize(job.Status)

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to put job: %w", err)
	}

	return nil
}

func (d *DynamoDBJobStorage) GetJob(ctx context.Context, jobID string) (*Job, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       jobKey(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	var job Job
	if err := attributevalue.UnmarshalMap(result.Item, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (d *DynamoDBJobStorage) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	jobs, err := d.queryJobs(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(statusIndex),
		KeyConditionExpression: aws.String("#status = :status"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(lifecycle.StatusPending)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}

	result := []*Job{}
	for _, job := range jobs {
		if job.IsPending() {
			result = append(result, job)
		}
	}

	sortByCreatedDesc(result)
	return result, nil
}

func (d *DynamoDBJobStorage) ListActiveJob(ctx context.Context, technicianID string) (*Job, error) {
	jobs, err := d.queryByTechnician(ctx, technicianID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active job: %w", err)
	}

	var active []*Job
	for _, job := range jobs {
		if lifecycle.IsActive(job.Status) {
			active = append(active, job)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	sortByUpdatedDesc(active)
	return active[0], nil
}

func (d *DynamoDBJobStorage) ListCompletedJobs(ctx context.Context, technicianID string) ([]*Job, error) {
	jobs, err := d.queryByTechnician(ctx, technicianID)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed jobs: %w", err)
	}

	result := []*Job{}
	for _, job := range jobs {
		if job.Status == lifecycle.StatusCompleted {
			result = append(result, job)
		}
	}

	sortByCompletedDesc(result)
	return result, nil
}

func (d *DynamoDBJobStorage) AcceptJob(ctx context.Context, jobID, technicianID string) error {
	now, err := attributevalue.Marshal(d.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.tableName),
		Key:              jobKey(jobID),
		UpdateExpression: aws.String("SET #status = :accepted, assigned_technician_id = :tech, accepted_at = :now, updated_at = :now"),
		ConditionExpression: aws.String(
			"attribute_exists(id) AND attribute_not_exists(assigned_technician_id) AND (#status = :pending OR attribute_not_exists(#status))"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":accepted": &types.AttributeValueMemberS{Value: string(lifecycle.StatusAccepted)},
			":pending":  &types.AttributeValueMemberS{Value: string(lifecycle.StatusPending)},
			":tech":     &types.AttributeValueMemberS{Value: technicianID},
			":now":      now,
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("job %s: %w", jobID, ErrAlreadyTaken)
		}
		return fmt.Errorf("failed to accept job: %w", err)
	}

	return nil
}

func (d *DynamoDBJobStorage) UpdateJobStatus(ctx context.Context, jobID, technicianID string, from, to lifecycle.Status) error {
	now, err := attributevalue.Marshal(d.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	updateExpression := "SET #status = :to, updated_at = :now"
	if to == lifecycle.StatusCompleted {
		updateExpression += ", completed_at = :now"
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 jobKey(jobID),
		UpdateExpression:    aws.String(updateExpression),
		ConditionExpression: aws.String("assigned_technician_id = :tech AND #status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":   &types.AttributeValueMemberS{Value: string(to)},
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":tech": &types.AttributeValueMemberS{Value: technicianID},
			":now":  now,
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("job %s: %w", jobID, ErrNotAssigned)
		}
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

func (d *DynamoDBJobStorage) AppendJobUpdate(ctx context.Context, update *JobUpdate) error {
	if update.CreatedAt.IsZero() {
		update.CreatedAt = d.now().UTC()
	}

	item, err := attributevalue.MarshalMap(update)
	if err != nil {
		return fmt.Errorf("failed to marshal job update: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.updatesTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put job update: %w", err)
	}

	return nil
}

func (d *DynamoDBJobStorage) queryByTechnician(ctx context.Context, technicianID string) ([]*Job, error) {
	return d.queryJobs(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(assignedTechnicianIndex),
		KeyConditionExpression: aws.String("assigned_technician_id = :tech"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tech": &types.AttributeValueMemberS{Value: technicianID},
		},
	})
}

// queryJobs follows LastEvaluatedKey until the query is exhausted
func (d *DynamoDBJobStorage) queryJobs(ctx context.Context, input *dynamodb.QueryInput) ([]*Job, error) {
	var jobs []*Job
	for {
		result, err := d.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}

		for _, item := range result.Items {
			var job Job
			if err := attributevalue.UnmarshalMap(item, &job); err != nil {
				return nil, fmt.Errorf("failed to unmarshal job: %w", err)
			}
			jobs = append(jobs, &job)
		}

		if len(result.LastEvaluatedKey) == 0 {
			return jobs, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// DynamoDBTechnicianStorage implements TechnicianStorage on a DynamoDB table keyed by technician_id
type DynamoDBTechnicianStorage struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

func NewDynamoDBTechnicianStorage(client DynamoDBAPI, tableName string) *DynamoDBTechnicianStorage {
	return &DynamoDBTechnicianStorage{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (d *DynamoDBTechnicianStorage) GetAvailability(ctx context.Context, technicianID string) (*Availability, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       technicianKey(technicianID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("availability for %s: %w", technicianID, ErrNotFound)
	}

	var a Availability
	if err := attributevalue.UnmarshalMap(result.Item, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
	}

	return &a, nil
}

func (d *DynamoDBTechnicianStorage) SetActive(ctx context.Context, technicianID string, active bool) (*Availability, error) {
	now, err := attributevalue.Marshal(d.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	return d.update(ctx, technicianID, "SET is_active = :active, last_status_change = :now", map[string]types.AttributeValue{
		":active": &types.AttributeValueMemberBOOL{Value: active},
		":now":    now,
	})
}

func (d *DynamoDBTechnicianStorage) UpdateLocation(ctx context.Context, technicianID string, lat, lng float64) (*Availability, error) {
	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":lat": lat,
		":lng": lng,
		":now": d.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal location: %w", err)
	}

	// last_status_change is seeded so a first write still produces a complete record
	return d.update(ctx, technicianID,
		"SET current_lat = :lat, current_lng = :lng, last_location_update = :now, last_status_change = if_not_exists(last_status_change, :now)",
		values)
}

func (d *DynamoDBTechnicianStorage) update(ctx context.Context, technicianID, expression string, values map[string]types.AttributeValue) (*Availability, error) {
	result, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       technicianKey(technicianID),
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update availability: %w", err)
	}

	var a Availability
	if err := attributevalue.UnmarshalMap(result.Attributes, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	a.TechnicianID = technicianID

	return &a, nil
}

func jobKey(jobID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: jobID},
	}
}

func technicianKey(technicianID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"technician_id": &types.AttributeValueMemberS{Value: technicianID},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
