// internal/notify/notify_test.go
package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"devmatch-workers/internal/common/errors"
	"devmatch-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) AnalysisFinished(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func finishedJob() *models.AnalysisJob {
	done := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.AnalysisJob{
		ID:          "job-1",
		UserID:      "user-1",
		Status:      models.JobStatusCompleted,
		CompletedAt: &done,
		Results:     []models.RepoAnalysis{{Name: "a"}, {Name: "b"}},
		Errors:      []string{"Failed to analyze c: timeout"},
	}
}

// ==========================
// Tests
// ==========================

func TestNewAnalysisFinished(t *testing.T) {
	e := NewAnalysisFinished(finishedJob())
	assert.Equal(t, EventAnalysisFinished, e.Type)
	assert.Equal(t, "completed", e.Status)
	assert.Equal(t, 2, e.Results)
	assert.Equal(t, 1, e.Errors)
	assert.False(t, e.FinishedAt.IsZero())
}

func TestRedisNotifier_Publishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, "analysis.finished")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(client, "analysis.finished")
	require.NoError(t, n.AnalysisFinished(ctx, NewAnalysisFinished(finishedJob())))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, "user-1", got.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisNotifier_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewRedisNotifier(client, "c").AnalysisFinished(context.Background(), Event{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.AsStandard(err).Code)
}

func TestSNSNotifier_Publishes(t *testing.T) {
	fake := &fakeSNS{}
	n := &SNSNotifier{client: fake, topicARN: "arn:aws:sns:eu-west-1:123:analysis"}

	require.NoError(t, n.AnalysisFinished(context.Background(), NewAnalysisFinished(finishedJob())))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "arn:aws:sns:eu-west-1:123:analysis", aws.ToString(in.TopicArn))
	assert.Equal(t, EventAnalysisFinished, aws.ToString(in.MessageAttributes["eventType"].StringValue))
	assert.Contains(t, aws.ToString(in.Message), `"jobId":"job-1"`)
}

func TestSNSNotifier_Failure(t *testing.T) {
	n := &SNSNotifier{client: &fakeSNS{err: errors.New("throttled")}, topicARN: "arn"}
	err := n.AnalysisFinished(context.Background(), Event{})
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, errors.AsStandard(err).Code)
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("down")}

	err := Multi{bad, ok}.AnalysisFinished(context.Background(), Event{JobID: "j"})
	require.Error(t, err)
	assert.Len(t, ok.events, 1, "a failing notifier does not stop the others")
	assert.Len(t, bad.events, 1)

	assert.NoError(t, Multi{ok}.AnalysisFinished(context.Background(), Event{}))
	assert.NoError(t, Multi(nil).AnalysisFinished(context.Background(), Event{}))
	assert.NoError(t, Nop{}.AnalysisFinished(context.Background(), Event{}))
}
