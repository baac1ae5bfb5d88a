package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dept-site-api/internal/domain"
)

// verificationAPI is the subset of *dynamodb.Client the store calls.
type verificationAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	dynamodb.ScanAPIClient
}

// VerificationStore keeps one verification entry per email in the
// verification_codes table (PK: email). expires_at is the table's TTL
// attribute, so DynamoDB eventually removes stale rows on its own; reads
// still apply the registry's expiry check because TTL deletion lags.
type VerificationStore struct {
	client    verificationAPI
	tableName string
}

func NewVerificationStore(client verificationAPI, tableName string) *VerificationStore {
	return &VerificationStore{client: client, tableName: tableName}
}

func (s *VerificationStore) Get(ctx context.Context, email string) (*domain.VerificationEntry, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey("email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrCodeNotFound)
	}
	var e domain.VerificationEntry
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &e, nil
}

func (s *VerificationStore) Put(ctx context.Context, e *domain.VerificationEntry) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *VerificationStore) Delete(ctx context.Context, email string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey("email", email),
	})
	return err
}

// MarkVerified sets verified=true with a condition on the stored code.
func (s *VerificationStore) MarkVerified(ctx context.Context, email, code string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 strKey("email", email),
		UpdateExpression:    aws.String("SET #v = :t"),
		ConditionExpression: aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{
			"#c": "code",
			"#v": "verified",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: code},
			":t": &types.AttributeValueMemberBOOL{Value: true},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	return conditionError(email, err)
}

// DeleteIf deletes the row with a condition on the stored code and, when
// verifiedOnly is set, on verified.
func (s *VerificationStore) DeleteIf(ctx context.Context, email, code string, verifiedOnly bool) error {
	cond := "#c = :c"
	names := map[string]string{"#c": "code"}
	values := map[string]types.AttributeValue{
		":c": &types.AttributeValueMemberS{Value: code},
	}
	if verifiedOnly {
		cond += " AND #v = :t"
		names["#v"] = "verified"
		values[":t"] = &types.AttributeValueMemberBOOL{Value: true}
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                           aws.String(s.tableName),
		Key:                                 strKey("email", email),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	return conditionError(email, err)
}

// conditionError maps a failed condition to ErrCodeNotFound when no row
// existed and to ErrCodeChanged when one did.
func conditionError(email string, err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return err
	}
	if len(ccf.Item) == 0 {
		return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeNotFound)
	}
	return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeChanged)
}

func (s *VerificationStore) Range(ctx context.Context, fn func(domain.VerificationEntry) bool) error {
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("scan verifications: %w", err)
		}
		var page []domain.VerificationEntry
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return fmt.Errorf("unmarshal verifications: %w", err)
		}
		for _, e := range page {
			if !fn(e) {
				return nil
			}
		}
	}
	return nil
}
