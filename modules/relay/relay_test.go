package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/taskflow-realtime/domain/realtime"
)

// fakeOccupants maps rooms to fixed connection sets.
type fakeOccupants map[realtime.RoomKey][]string

func (f fakeOccupants) Connections(room realtime.RoomKey) []string {
	return f[room]
}

// fakeDeliverer records fan-out calls.
type fakeDeliverer struct {
	calls []delivery
}

type delivery struct {
	connIDs []string
	msgType string
	payload any
}

func (f *fakeDeliverer) SendMany(connIDs []string, msgType string, payload any) {
	f.calls = append(f.calls, delivery{connIDs: connIDs, msgType: msgType, payload: payload})
}

func envelope(t *testing.T, event string, data any) []byte {
	t.Helper()
	body, err := json.Marshal(data)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]any{"event": event, "data": json.RawMessage(body)})
	require.NoError(t, err)
	return raw
}

func TestDispatch_TaskCreatedTargetsProjectRoom(t *testing.T) {
	occupants := fakeOccupants{
		realtime.ProjectRoom("p1"): {"conn-1", "conn-2"},
	}
	deliverer := &fakeDeliverer{}
	relay := New(occupants, deliverer, nil)

	payload := envelope(t, "task:created", map[string]string{
		"id":        "t1",
		"projectId": "p1",
		"title":     "Ship it",
	})
	err := relay.Dispatch(payload)
	require.NoError(t, err)

	require.Len(t, deliverer.calls, 1)
	assert.Equal(t, "task:created", deliverer.calls[0].msgType)
	assert.ElementsMatch(t, []string{"conn-1", "conn-2"}, deliverer.calls[0].connIDs)
}

func TestDispatch_TaskUpdatedTargetsProjectAndTaskRooms(t *testing.T) {
	occupants := fakeOccupants{
		realtime.ProjectRoom("p1"): {"conn-1"},
		realtime.TaskRoom("t1"):    {"conn-1", "conn-2"},
	}
	deliverer := &fakeDeliverer{}
	relay := New(occupants, deliverer, nil)

	payload := envelope(t, "task:updated", map[string]string{
		"id":        "t1",
		"projectId": "p1",
		"status":    "done",
	})
	require.NoError(t, relay.Dispatch(payload))

	// conn-1 is in both rooms; the hub de-duplicates, the relay just hands
	// over the combined set.
	require.Len(t, deliverer.calls, 1)
	assert.ElementsMatch(t, []string{"conn-1", "conn-1", "conn-2"}, deliverer.calls[0].connIDs)
}

func TestDispatch_TaskDeletedTargetsBothRooms(t *testing.T) {
	occupants := fakeOccupants{
		realtime.TaskRoom("t1"): {"conn-2"},
	}
	deliverer := &fakeDeliverer{}
	relay := New(occupants, deliverer, nil)

	payload := envelope(t, "task:deleted", map[string]string{
		"taskId":    "t1",
		"projectId": "p1",
	})
	require.NoError(t, relay.Dispatch(payload))

	require.Len(t, deliverer.calls, 1)
	assert.Equal(t, []string{"conn-2"}, deliverer.calls[0].connIDs)
}

func TestDispatch_CommentAddedTargetsTaskRoom(t *testing.T) {
	occupants := fakeOccupants{
		realtime.TaskRoom("t1"):    {"conn-1"},
		realtime.ProjectRoom("p1"): {"conn-2"},
	}
	deliverer := &fakeDeliverer{}
	relay := New(occupants, deliverer, nil)

	payload := envelope(t, "comment:added", map[string]string{
		"id":        "c1",
		"taskId":    "t1",
		"projectId": "p1",
		"body":      "lgtm",
	})
	require.NoError(t, relay.Dispatch(payload))

	require.Len(t, deliverer.calls, 1)
	assert.Equal(t, []string{"conn-1"}, deliverer.calls[0].connIDs,
		"comments go to task viewers only")
}

func TestDispatch_PayloadForwardedVerbatim(t *testing.T) {
	occupants := fakeOccupants{
		realtime.ProjectRoom("p1"): {"conn-1"},
	}
	deliverer := &fakeDeliverer{}
	relay := New(occupants, deliverer, nil)

	data := map[string]string{"id": "t1", "projectId": "p1", "extra": "kept"}
	require.NoError(t, relay.Dispatch(envelope(t, "task:created", data)))

	require.Len(t, deliverer.calls, 1)
	raw, ok := deliverer.calls[0].payload.(json.RawMessage)
	require.True(t, ok, "payload should be forwarded as raw JSON")

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, data, got)
}

func TestDispatch_NoOccupantsIsSilent(t *testing.T) {
	deliverer := &fakeDeliverer{}
	relay := New(fakeOccupants{}, deliverer, nil)

	payload := envelope(t, "task:created", map[string]string{"id": "t1", "projectId": "p1"})
	require.NoError(t, relay.Dispatch(payload))
	assert.Empty(t, deliverer.calls)
}

func TestDispatch_Errors(t *testing.T) {
	deliverer := &fakeDeliverer{}
	relay := New(fakeOccupants{}, deliverer, nil)

	tests := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "malformed json",
			payload: []byte("{not json"),
		},
		{
			name:    "unknown event",
			payload: envelope(t, "task:archived", map[string]string{"id": "t1"}),
		},
		{
			name:    "task event without projectId",
			payload: envelope(t, "task:created", map[string]string{"id": "t1"}),
		},
		{
			name:    "comment without taskId",
			payload: envelope(t, "comment:added", map[string]string{"id": "c1"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := relay.Dispatch(tt.payload)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, deliverer.calls)
}

func TestRun_MalformedMessageDoesNotStopStream(t *testing.T) {
	occupants := fakeOccupants{
		realtime.ProjectRoom("p1"): {"conn-1"},
	}
	deliverer := &fakeDeliverer{}
	relay := New(occupants, deliverer, nil)

	payloads := make(chan []byte, 2)
	payloads <- []byte("{not json")
	payloads <- envelope(t, "task:created", map[string]string{"id": "t1", "projectId": "p1"})
	close(payloads)

	relay.Run(payloads)

	require.Len(t, deliverer.calls, 1, "valid message after a malformed one must still deliver")
	assert.Equal(t, "task:created", deliverer.calls[0].msgType)
}
