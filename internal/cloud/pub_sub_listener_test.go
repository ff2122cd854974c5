// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/jaycherian/gcp-go-flexvault/internal/cloud"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-flexvault/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// newFakePubSub starts an in-process Pub/Sub server with one topic and one
// subscription on it.
func newFakePubSub(t *testing.T, topicID, subID string) (*pstest.Server, *pubsub.Client, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "flexvault-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, topicID)
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	_, err = client.CreateSubscription(ctx, subID, pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)
	return srv, client, topic
}

func publish(t *testing.T, topic *pubsub.Topic, data string, eventType string) string {
	t.Helper()
	msg := &pubsub.Message{Data: []byte(data)}
	if len(eventType) > 0 {
		msg.Attributes = map[string]string{cloud.NotificationEventTypeAttribute: eventType}
	}
	id, err := topic.Publish(context.Background(), msg).Get(context.Background())
	require.NoError(t, err)
	return id
}

func TestListenerSkipsOtherEventTypes(t *testing.T) {
	srv, client, topic := newFakePubSub(t, "flexvault-object-created", "flexvault-object-created-sub")

	files := test.NewMemoryFileStore()
	jobs := &test.MemoryJobQueue{}
	listener, err := cloud.NewPubSubListener(client, "flexvault-object-created-sub",
		workflow.NewObjectCreatedWorkflow(files, jobs, nil))
	require.NoError(t, err)
	listener.SetAttributeFilter(cloud.NotificationEventTypeAttribute, cloud.EventObjectFinalize)

	deleted := publish(t, topic, test.GetObjectCreatedMessageText("u1/1-old.pdf", 10), "OBJECT_DELETE")
	unlabeled := publish(t, topic, test.GetObjectCreatedMessageText("u1/2-other.pdf", 10), "")
	finalized := publish(t, topic, test.GetObjectCreatedMessageText("u1/3-new.pdf", 2048), cloud.EventObjectFinalize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener.Listen(ctx)

	require.Eventually(t, func() bool {
		return srv.Message(deleted).Acks > 0 && srv.Message(unlabeled).Acks > 0 && srv.Message(finalized).Acks > 0
	}, 10*time.Second, 20*time.Millisecond)

	require.Len(t, jobs.Jobs(), 1)
	assert.Equal(t, "u1/3-new.pdf", jobs.Jobs()[0].Key)

	record, err := files.Get(context.Background(), "u1", "u1/3-new.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, record.Status)
	assert.Equal(t, int64(2048), record.Size)

	_, err = files.Get(context.Background(), "u1", "u1/1-old.pdf")
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
}

func TestListenerWithoutFilterProcessesEverything(t *testing.T) {
	srv, client, topic := newFakePubSub(t, "flexvault-jobs", "flexvault-jobs-sub")

	files := test.NewMemoryFileStore()
	jobs := &test.MemoryJobQueue{}
	listener, err := cloud.NewPubSubListener(client, "flexvault-jobs-sub", nil)
	require.NoError(t, err)
	listener.SetCommand(workflow.NewObjectCreatedWorkflow(files, jobs, nil))

	id := publish(t, topic, test.GetObjectCreatedMessageText("u1/4-doc.pdf", 1), "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener.Listen(ctx)

	require.Eventually(t, func() bool { return srv.Message(id).Acks > 0 }, 10*time.Second, 20*time.Millisecond)
	require.Len(t, jobs.Jobs(), 1)
}

func TestListenerNacksFailedMessages(t *testing.T) {
	srv, client, topic := newFakePubSub(t, "flexvault-object-created", "flexvault-object-created-sub")

	files := test.NewMemoryFileStore()
	files.Err = model.NewError(model.KindUpstream, "unavailable")
	listener, err := cloud.NewPubSubListener(client, "flexvault-object-created-sub",
		workflow.NewObjectCreatedWorkflow(files, &test.MemoryJobQueue{}, nil))
	require.NoError(t, err)

	id := publish(t, topic, test.GetObjectCreatedMessageText("u1/5-doc.pdf", 1), cloud.EventObjectFinalize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener.Listen(ctx)

	require.Eventually(t, func() bool { return srv.Message(id).Deliveries > 1 }, 10*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, srv.Message(id).Acks)
}
