package fakes

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// FakeIAMClient is an in-memory stand-in for the IAM access key API
type FakeIAMClient struct {
	mu sync.Mutex

	// Keys is the current key set of the user, in creation order.
	Keys []iamtypes.AccessKeyMetadata
	// PageSize splits ListAccessKeys into pages when > 0.
	PageSize int

	// Errors maps an operation name to the error it returns.
	Errors map[string]error

	// NextKeyID and NextSecret are returned by the next CreateAccessKey.
	NextKeyID  string
	NextSecret string

	ListAccessKeysFunc  func(ctx context.Context, params *iam.ListAccessKeysInput) (*iam.ListAccessKeysOutput, error)
	CreateAccessKeyFunc func(ctx context.Context, params *iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error)

	calls   []string
	updates []iam.UpdateAccessKeyInput
	created int
}

// NewFakeIAMClient creates an IAM fake with no keys
func NewFakeIAMClient() *FakeIAMClient {
	return &FakeIAMClient{
		Errors:     make(map[string]error),
		NextKeyID:  "AKIANEWKEY0000000001",
		NextSecret: "wJalrXUtnFEMI/K7MDENG/bPxRfiCYNEWSECRET",
	}
}

// AddKey appends an existing key to the user
func (f *FakeIAMClient) AddKey(id string, status iamtypes.StatusType, created time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Keys = append(f.Keys, iamtypes.AccessKeyMetadata{
		AccessKeyId: aws.String(id),
		Status:      status,
		CreateDate:  aws.Time(created),
		UserName:    aws.String("ci-deployer"),
	})
}

// AddError makes op fail with an API error carrying code
func (f *FakeIAMClient) AddError(op, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Errors[op] = &smithy.GenericAPIError{Code: code, Message: op + " failed"}
}

// Calls returns the operation names received, in order
func (f *FakeIAMClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

// Updates returns every UpdateAccessKey request received
func (f *FakeIAMClient) Updates() []iam.UpdateAccessKeyInput {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]iam.UpdateAccessKeyInput(nil), f.updates...)
}

// Status returns the current status of key id
func (f *FakeIAMClient) Status(id string) iamtypes.StatusType {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, k := range f.Keys {
		if aws.ToString(k.AccessKeyId) == id {
			return k.Status
		}
	}
	return ""
}

func (f *FakeIAMClient) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, op)
	return f.Errors[op]
}

// ListAccessKeys mocks the ListAccessKeys operation
func (f *FakeIAMClient) ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	if err := f.record("ListAccessKeys"); err != nil {
		return nil, err
	}
	if f.ListAccessKeysFunc != nil {
		return f.ListAccessKeysFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if params.Marker != nil {
		n, err := strconv.Atoi(aws.ToString(params.Marker))
		if err != nil {
			return nil, fmt.Errorf("bad marker %q", aws.ToString(params.Marker))
		}
		start = n
	}
	end := len(f.Keys)
	if f.PageSize > 0 && start+f.PageSize < end {
		end = start + f.PageSize
	}

	out := &iam.ListAccessKeysOutput{
		AccessKeyMetadata: append([]iamtypes.AccessKeyMetadata(nil), f.Keys[start:end]...),
	}
	if end < len(f.Keys) {
		out.IsTruncated = true
		out.Marker = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// UpdateAccessKey mocks the UpdateAccessKey operation
func (f *FakeIAMClient) UpdateAccessKey(ctx context.Context, params *iam.UpdateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.UpdateAccessKeyOutput, error) {
	if err := f.record("UpdateAccessKey"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, *params)
	for i := range f.Keys {
		if aws.ToString(f.Keys[i].AccessKeyId) == aws.ToString(params.AccessKeyId) {
			f.Keys[i].Status = params.Status
			return &iam.UpdateAccessKeyOutput{}, nil
		}
	}
	return nil, &iamtypes.NoSuchEntityException{Message: aws.String("The Access Key with id " + aws.ToString(params.AccessKeyId) + " cannot be found.")}
}

// CreateAccessKey mocks the CreateAccessKey operation
func (f *FakeIAMClient) CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	if err := f.record("CreateAccessKey"); err != nil {
		return nil, err
	}
	if f.CreateAccessKeyFunc != nil {
		return f.CreateAccessKeyFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Keys) >= 2 {
		return nil, &iamtypes.LimitExceededException{Message: aws.String("Cannot exceed quota for AccessKeysPerUser: 2")}
	}

	f.created++
	now := time.Date(2025, 10, 7, 12, 0, f.created, 0, time.UTC)
	f.Keys = append(f.Keys, iamtypes.AccessKeyMetadata{
		AccessKeyId: aws.String(f.NextKeyID),
		Status:      iamtypes.StatusTypeActive,
		CreateDate:  aws.Time(now),
		UserName:    params.UserName,
	})

	return &iam.CreateAccessKeyOutput{
		AccessKey: &iamtypes.AccessKey{
			AccessKeyId:     aws.String(f.NextKeyID),
			SecretAccessKey: aws.String(f.NextSecret),
			Status:          iamtypes.StatusTypeActive,
			UserName:        params.UserName,
			CreateDate:      aws.Time(now),
		},
	}, nil
}

// FakeCloudWatchClient serves canned GetMetricStatistics responses
type FakeCloudWatchClient struct {
	mu sync.Mutex

	// Datapoints maps a metric name to the datapoints returned for it.
	Datapoints map[string][]cwtypes.Datapoint
	// Errors maps a metric name to the error returned for it.
	Errors map[string]error

	requests []cloudwatch.GetMetricStatisticsInput
}

// NewFakeCloudWatchClient creates a CloudWatch fake with no data
func NewFakeCloudWatchClient() *FakeCloudWatchClient {
	return &FakeCloudWatchClient{
		Datapoints: make(map[string][]cwtypes.Datapoint),
		Errors:     make(map[string]error),
	}
}

// AddAverage appends an Average datapoint for metric
func (f *FakeCloudWatchClient) AddAverage(metric string, ts time.Time, value float64, unit cwtypes.StandardUnit) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Datapoints[metric] = append(f.Datapoints[metric], cwtypes.Datapoint{
		Timestamp: aws.Time(ts),
		Average:   aws.Float64(value),
		Unit:      unit,
	})
}

// Requests returns every request received, in order
func (f *FakeCloudWatchClient) Requests() []cloudwatch.GetMetricStatisticsInput {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]cloudwatch.GetMetricStatisticsInput(nil), f.requests...)
}

// GetMetricStatistics mocks the GetMetricStatistics operation
func (f *FakeCloudWatchClient) GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, *params)
	name := aws.ToString(params.MetricName)
	if err := f.Errors[name]; err != nil {
		return nil, err
	}

	return &cloudwatch.GetMetricStatisticsOutput{
		Label:      params.MetricName,
		Datapoints: append([]cwtypes.Datapoint(nil), f.Datapoints[name]...),
	}, nil
}

// FakeSTSClient answers GetCallerIdentity
type FakeSTSClient struct {
	Account string
	Arn     string
	UserID  string
	Err     error
}

// GetCallerIdentity mocks the GetCallerIdentity operation
func (f *FakeSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(f.Arn),
		UserId:  aws.String(f.UserID),
	}, nil
}
