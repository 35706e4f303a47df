package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"report-backend/internal/messaging"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveTask(t *testing.T, receiver messaging.Reciever) messaging.Task {
	select {
	case task := <-receiver.Tasks():
		return task
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for task")
		return nil
	}
}

func TestRabbitMQ(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := createRabbitMQ(t, ctx, 1)

	t.Run("Publish and Receive AnalysisTask", func(t *testing.T) {
		payload := messaging.AnalysisTaskPayload{ReportId: uuid.New(), RunId: uuid.New()}
		require.NoError(t, publisher.PublishAnalysisTask(ctx, payload))

		task := receiveTask(t, receiver)
		assert.Equal(t, messaging.AnalysisQueue, task.Type())

		var received messaging.AnalysisTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, payload, received)

		require.NoError(t, task.Ack())
	})

	t.Run("Requeued task is redelivered", func(t *testing.T) {
		payload := messaging.AnalysisTaskPayload{ReportId: uuid.New(), RunId: uuid.New()}
		require.NoError(t, publisher.PublishAnalysisTask(ctx, payload))

		require.NoError(t, receiveTask(t, receiver).Requeue())

		task := receiveTask(t, receiver)
		var received messaging.AnalysisTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, payload, received)
		require.NoError(t, task.Ack())
	})

	t.Run("Nacked task is dropped", func(t *testing.T) {
		first := messaging.AnalysisTaskPayload{ReportId: uuid.New(), RunId: uuid.New()}
		second := messaging.AnalysisTaskPayload{ReportId: uuid.New(), RunId: uuid.New()}
		require.NoError(t, publisher.PublishAnalysisTask(ctx, first))
		require.NoError(t, publisher.PublishAnalysisTask(ctx, second))

		require.NoError(t, receiveTask(t, receiver).Nack())

		task := receiveTask(t, receiver)
		var received messaging.AnalysisTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &received))
		assert.Equal(t, second, received)
		require.NoError(t, task.Ack())
	})
}
