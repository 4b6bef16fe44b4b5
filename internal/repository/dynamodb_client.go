package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"requirements-agent/internal/session"
)

const (
	skState            = "STATE"
	defaultTTLDuration = 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client stores session state in a DynamoDB table, one item per session.
// The state is kept as a JSON document next to a numeric version attribute
// used for optimistic concurrency.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

var _ session.Store = (*Client)(nil)

type Option func(*Client)

// WithTTL sets how long an idle session is kept. The table's TTL attribute
// must be configured as "ttl".
func WithTTL(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	c := &Client{api: api, tableName: tableName, ttl: defaultTTLDuration, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(id string) string {
	return "SESSION#" + id
}

func (c *Client) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

// Create writes a new session item, failing with session.ErrConflict if the
// ID is taken.
func (c *Client) Create(ctx context.Context, st session.State) error {
	item, err := c.stateItem(st)
	if err != nil {
		return fmt.Errorf("repository: Create: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: Create: %w", session.ErrConflict)
		}
		return fmt.Errorf("repository: Create: %w", err)
	}
	return nil
}

// Get reads a session. Items past their TTL are reported as missing even
// before DynamoDB deletes them.
func (c *Client) Get(ctx context.Context, id string) (session.State, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return session.State{}, fmt.Errorf("repository: Get: %w", err)
	}
	if out == nil || len(out.Item) == 0 || c.expired(out.Item) {
		return session.State{}, session.ErrNotFound
	}
	st, err := itemToState(out.Item)
	if err != nil {
		return session.State{}, fmt.Errorf("repository: Get: %w", err)
	}
	return st, nil
}

// Save replaces the session item if its stored version equals prevVersion.
func (c *Client) Save(ctx context.Context, st session.State, prevVersion int64) error {
	item, err := c.stateItem(st)
	if err != nil {
		return fmt.Errorf("repository: Save: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK) AND version = :prev"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(prevVersion, 10)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return fmt.Errorf("repository: Save: %w", session.ErrNotFound)
			}
			return fmt.Errorf("repository: Save: %w", session.ErrConflict)
		}
		return fmt.Errorf("repository: Save: %w", err)
	}
	return nil
}

func (c *Client) expired(item map[string]types.AttributeValue) bool {
	ttl, err := intAttr(item, "ttl")
	if err != nil {
		return false
	}
	return ttl > 0 && c.now().Unix() > ttl
}

func (c *Client) stateItem(st session.State) (map[string]types.AttributeValue, error) {
	body, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(st.ID)},
		"SK":        &types.AttributeValueMemberS{Value: skState},
		"sessionId": &types.AttributeValueMemberS{Value: st.ID},
		"phase":     &types.AttributeValueMemberS{Value: string(st.Phase)},
		"state":     &types.AttributeValueMemberS{Value: string(body)},
		"version":   &types.AttributeValueMemberN{Value: strconv.FormatInt(st.Version, 10)},
		"updatedAt": &types.AttributeValueMemberS{Value: st.UpdatedAt.UTC().Format(time.RFC3339)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(c.now().Add(c.ttl).Unix(), 10)},
	}, nil
}

// itemToState converts a DynamoDB attribute map to a session state. The
// version attribute is authoritative over the one inside the JSON document.
func itemToState(item map[string]types.AttributeValue) (session.State, error) {
	body, err := strAttr(item, "state")
	if err != nil {
		return session.State{}, err
	}
	version, err := intAttr(item, "version")
	if err != nil {
		return session.State{}, err
	}
	var st session.State
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return session.State{}, fmt.Errorf("repository: decode state: %w", err)
	}
	st.Version = version
	return st, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
