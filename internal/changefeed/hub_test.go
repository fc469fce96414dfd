package changefeed_test

import (
	"complaintdesk/backend/internal/changefeed"
	"complaintdesk/backend/internal/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *changefeed.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := changefeed.NewHub()
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func complaintEvent(kind changefeed.Kind, id, owner string) changefeed.Event {
	return changefeed.ComplaintEvent(kind, &models.Complaint{ID: id, StudentID: owner, Status: models.StatusOpen})
}

func receive(t *testing.T, ch <-chan changefeed.Event) changefeed.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
	return changefeed.Event{}
}

func assertNothing(t *testing.T, ch <-chan changefeed.Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFilterMatches(t *testing.T) {
	evt := complaintEvent(changefeed.KindUpdate, "c-1", "student-a")

	assert.True(t, changefeed.Filter{Table: changefeed.TableComplaints}.Matches(evt))
	assert.True(t, changefeed.Filter{Table: changefeed.TableComplaints, OwnerID: "student-a"}.Matches(evt))
	assert.False(t, changefeed.Filter{Table: changefeed.TableComplaints, OwnerID: "student-b"}.Matches(evt))
	assert.False(t, changefeed.Filter{Table: "status_history"}.Matches(evt))
	assert.True(t, changefeed.Filter{}.Matches(evt))
}

func TestHub_OwnerFilteredDelivery(t *testing.T) {
	hub := startHub(t)

	admin := changefeed.NewChannelSubscriber("admin", changefeed.Filter{Table: changefeed.TableComplaints}, 4)
	studentA := changefeed.NewChannelSubscriber("a", changefeed.Filter{Table: changefeed.TableComplaints, OwnerID: "student-a"}, 4)
	studentB := changefeed.NewChannelSubscriber("b", changefeed.Filter{Table: changefeed.TableComplaints, OwnerID: "student-b"}, 4)
	require.True(t, hub.Subscribe(admin))
	require.True(t, hub.Subscribe(studentA))
	require.True(t, hub.Subscribe(studentB))

	require.NoError(t, hub.Publish(context.Background(), complaintEvent(changefeed.KindInsert, "c-1", "student-a")))

	assert.Equal(t, "c-1", receive(t, admin.Events()).ComplaintID)
	evt := receive(t, studentA.Events())
	assert.Equal(t, changefeed.KindInsert, evt.Kind)
	assert.Equal(t, "student-a", evt.OwnerID)
	assertNothing(t, studentB.Events())
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := startHub(t)
	sub := changefeed.NewChannelSubscriber("viewer", changefeed.Filter{}, 1)
	require.True(t, hub.Subscribe(sub))

	hub.Unsubscribe(sub)

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}

	// Unsubscribing twice must not close twice.
	hub.Unsubscribe(sub)
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := startHub(t)
	slow := newMockSubscriber("slow", changefeed.Filter{}, 1)
	require.True(t, hub.Subscribe(slow))

	ctx := context.Background()
	require.NoError(t, hub.Broadcast(ctx, complaintEvent(changefeed.KindUpdate, "c-1", "s")))
	require.NoError(t, hub.Broadcast(ctx, complaintEvent(changefeed.KindUpdate, "c-2", "s")))

	assert.Eventually(t, func() bool { return slow.CloseCount() == 1 }, time.Second, 10*time.Millisecond)

	// Later unsubscribe of a dropped subscriber is a no-op.
	hub.Unsubscribe(slow)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, slow.CloseCount())
}

func TestHub_ReplacesSubscriberWithSameID(t *testing.T) {
	hub := startHub(t)
	first := newMockSubscriber("tab", changefeed.Filter{}, 4)
	second := newMockSubscriber("tab", changefeed.Filter{}, 4)
	require.True(t, hub.Subscribe(first))
	require.True(t, hub.Subscribe(second))

	require.NoError(t, hub.Broadcast(context.Background(), complaintEvent(changefeed.KindUpdate, "c-1", "s")))

	receive(t, second.RecvChannel)
	assert.Equal(t, 1, first.CloseCount())
	assert.Empty(t, first.RecvChannel)

	// The stale subscriber's unsubscribe must not remove the new one.
	hub.Unsubscribe(first)
	require.NoError(t, hub.Broadcast(context.Background(), complaintEvent(changefeed.KindUpdate, "c-2", "s")))
	assert.Equal(t, "c-2", receive(t, second.RecvChannel).ComplaintID)
}

func TestHub_StopClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := changefeed.NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	sub := newMockSubscriber("viewer", changefeed.Filter{}, 1)
	require.True(t, hub.Subscribe(sub))

	cancel()
	<-stopped

	assert.Equal(t, 1, sub.CloseCount())
	assert.False(t, hub.Subscribe(newMockSubscriber("late", changefeed.Filter{}, 1)))
	assert.ErrorIs(t, hub.Broadcast(context.Background(), complaintEvent(changefeed.KindUpdate, "c", "s")), changefeed.ErrHubStopped)
}

func TestDecodeEvent_RoundTrip(t *testing.T) {
	evt := complaintEvent(changefeed.KindUpdate, "c-9", "student-z")
	data := []byte(`{"table":"complaints","kind":"update","complaint_id":"c-9","owner_id":"student-z","complaint":{"id":"c-9","student_id":"student-z","status":"Resolved"}}`)

	got, err := changefeed.DecodeEvent(data)

	require.NoError(t, err)
	assert.Equal(t, evt.ComplaintID, got.ComplaintID)
	assert.Equal(t, evt.OwnerID, got.OwnerID)
	require.NotNil(t, got.Complaint)
	assert.Equal(t, models.StatusResolved, got.Complaint.Status)

	_, err = changefeed.DecodeEvent([]byte("not json"))
	assert.Error(t, err)
}
