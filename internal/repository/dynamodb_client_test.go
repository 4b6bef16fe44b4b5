package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"requirements-agent/internal/domain"
	"requirements-agent/internal/session"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

var fixedNow = time.Unix(1_700_000_000, 0)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table", WithTTL(time.Hour))
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func sampleState() session.State {
	pc := domain.NewProjectContext()
	pc.ProjectType = domain.ProjectTypeWeb
	return session.State{
		ID:      "abc",
		Phase:   domain.PhaseDiscovery,
		Context: pc,
		Requirements: domain.Requirements{
			domain.FieldBudget:      "$5000",
			domain.FieldPerformance: true,
		},
		History: []domain.Message{{
			ID:        "m1",
			Role:      domain.RoleAssistant,
			Text:      "Hi!",
			Timestamp: fixedNow.UTC(),
		}},
		Version:   3,
		CreatedAt: fixedNow.UTC(),
		UpdatedAt: fixedNow.UTC(),
	}
}

func attrS(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, err := strAttr(item, key)
	require.NoError(t, err)
	return v
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "t")
	require.Error(t, err)
	_, err = New(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestCreate_ConditionalPut(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.Create(context.Background(), sampleState()))
	in := db.lastPutInput
	require.NotNil(t, in)
	require.Equal(t, "test-table", aws.ToString(in.TableName))
	require.Equal(t, "attribute_not_exists(PK)", aws.ToString(in.ConditionExpression))
	require.Equal(t, "SESSION#abc", attrS(t, in.Item, "PK"))
	require.Equal(t, skState, attrS(t, in.Item, "SK"))
	require.Equal(t, "discovery", attrS(t, in.Item, "phase"))

	ttl, err := intAttr(in.Item, "ttl")
	require.NoError(t, err)
	require.Equal(t, fixedNow.Add(time.Hour).Unix(), ttl)
}

func TestCreate_Conflict(t *testing.T) {
	db := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	c := mustNewClient(t, db)
	err := c.Create(context.Background(), sampleState())
	require.ErrorIs(t, err, session.ErrConflict)
}

func TestGet_RoundTrip(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	st := sampleState()
	require.NoError(t, c.Create(context.Background(), st))

	db.getOut = &dynamodb.GetItemOutput{Item: db.lastPutInput.Item}
	got, err := c.Get(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, st, got)
	require.True(t, aws.ToBool(db.lastGetInput.ConsistentRead))
}

func TestGet_VersionAttributeWins(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.Create(context.Background(), sampleState()))

	item := db.lastPutInput.Item
	item["version"] = &types.AttributeValueMemberN{Value: "9"}
	db.getOut = &dynamodb.GetItemOutput{Item: item}
	got, err := c.Get(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, int64(9), got.Version)
}

func TestGet_Missing(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	_, err := c.Get(context.Background(), "abc")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestGet_ExpiredItem(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.Create(context.Background(), sampleState()))
	db.getOut = &dynamodb.GetItemOutput{Item: db.lastPutInput.Item}

	c.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	_, err := c.Get(context.Background(), "abc")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestGet_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErr: errors.New("boom")})
	_, err := c.Get(context.Background(), "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "repository: Get")

	c = mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"state":   &types.AttributeValueMemberS{Value: "{not json"},
		"version": &types.AttributeValueMemberN{Value: "1"},
	}}})
	_, err = c.Get(context.Background(), "abc")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode state")
}

func TestSave_VersionCondition(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	st := sampleState()
	st.Version = 4
	require.NoError(t, c.Save(context.Background(), st, 3))

	in := db.lastPutInput
	require.Equal(t, "attribute_exists(PK) AND version = :prev", aws.ToString(in.ConditionExpression))
	prev := in.ExpressionAttributeValues[":prev"].(*types.AttributeValueMemberN)
	require.Equal(t, "3", prev.Value)
	version, err := intAttr(in.Item, "version")
	require.NoError(t, err)
	require.Equal(t, int64(4), version)
}

func TestSave_ConditionFailures(t *testing.T) {
	stale := &types.ConditionalCheckFailedException{
		Message: aws.String("version mismatch"),
		Item: map[string]types.AttributeValue{
			"version": &types.AttributeValueMemberN{Value: strconv.Itoa(7)},
		},
	}
	c := mustNewClient(t, &fakeDynamo{putErr: stale})
	require.ErrorIs(t, c.Save(context.Background(), sampleState(), 2), session.ErrConflict)

	gone := &types.ConditionalCheckFailedException{Message: aws.String("missing")}
	c = mustNewClient(t, &fakeDynamo{putErr: gone})
	require.ErrorIs(t, c.Save(context.Background(), sampleState(), 2), session.ErrNotFound)

	c = mustNewClient(t, &fakeDynamo{putErr: errors.New("throttled")})
	err := c.Save(context.Background(), sampleState(), 2)
	require.Error(t, err)
	require.NotErrorIs(t, err, session.ErrConflict)
}
