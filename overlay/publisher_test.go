package overlay

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedMock() *MockClient {
	c := NewMockClient()
	c.SetConnected(true)
	return c
}

func TestNewPublisher_Defaults(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	publisher := NewPublisher(nil, "")

	if publisher.publishPrefix != "floorgeo" {
		t.Errorf("Default prefix = %s, want floorgeo", publisher.publishPrefix)
	}
	if publisher.qos != 0 {
		t.Errorf("Default QoS = %d, want 0", publisher.qos)
	}
	if !publisher.retain {
		t.Error("Default retain should be true")
	}
}

func TestNewPublisher_PrefixFromEnv(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "site-a")
	assert.Equal(t, "site-a", NewPublisher(nil, "").publishPrefix)
	assert.Equal(t, "explicit", NewPublisher(nil, "explicit").publishPrefix)
}

func TestPublisher_NotConnected(t *testing.T) {
	assert.Error(t, NewPublisher(nil, "x").PublishSnapshot(Snapshot{}))

	client := NewMockClient()
	publisher := NewPublisher(client, "x")
	assert.Error(t, publisher.PublishSnapshot(Snapshot{}))
	assert.Error(t, publisher.PublishOverlay(BoundingBox{}, PolygonMetrics{}))
	assert.Empty(t, client.Published())
}

func TestPublisher_PublishSnapshot(t *testing.T) {
	client := connectedMock()
	publisher := NewPublisher(client, "campus")

	snap := Snapshot{
		Sequence:   7,
		Placements: PlaceAll(campusRobots(), campusBounds(t), campus.width, campus.height),
	}
	require.NoError(t, publisher.PublishSnapshot(snap))

	msgs := client.Published()
	require.Len(t, msgs, 5, "one message per robot plus the combined batch")

	for i, p := range snap.Placements {
		assert.Equal(t, "campus/"+p.ID, msgs[i].Topic)
		assert.True(t, msgs[i].Retain)
		assert.Equal(t, byte(0), msgs[i].QoS)

		var pm PlacementMessage
		require.NoError(t, json.Unmarshal(msgs[i].Payload, &pm))
		assert.Equal(t, p.ID, pm.ID)
		assert.Equal(t, p.Geo.Lat, pm.Lat)
		assert.Equal(t, p.Geo.Lng, pm.Lng)
		assert.Equal(t, p.Position.X, pm.PixelX)
		assert.Equal(t, uint64(7), pm.Sequence)
	}

	last, ok := client.Last("campus/placements")
	require.True(t, ok)
	var combined struct {
		Sequence   uint64             `json:"sequence"`
		Placements []PlacementMessage `json:"placements"`
	}
	require.NoError(t, json.Unmarshal(last.Payload, &combined))
	assert.Equal(t, uint64(7), combined.Sequence)
	require.Len(t, combined.Placements, 4)
	assert.Equal(t, "003", combined.Placements[2].ID)
}

func TestPublisher_GetPlacement(t *testing.T) {
	client := connectedMock()
	publisher := NewPublisher(client, "campus")

	_, ok := publisher.GetPlacement("001")
	assert.False(t, ok)

	snap := Snapshot{Sequence: 1, Placements: PlaceAll(campusRobots(), campusBounds(t), campus.width, campus.height)}
	require.NoError(t, publisher.PublishSnapshot(snap))

	pm, ok := publisher.GetPlacement("001")
	require.True(t, ok)
	assert.Equal(t, 406.0, pm.PixelX)

	// Returned value is a copy
	pm.PixelX = 0
	again, _ := publisher.GetPlacement("001")
	assert.Equal(t, 406.0, again.PixelX)

	// A new batch replaces the cache entirely
	require.NoError(t, publisher.PublishSnapshot(Snapshot{Sequence: 2, Placements: snap.Placements[1:2]}))
	_, ok = publisher.GetPlacement("001")
	assert.False(t, ok)
}

func TestPublisher_PublishOverlay(t *testing.T) {
	client := connectedMock()
	publisher := NewPublisher(client, "campus")
	publisher.SetQoS(1)
	publisher.SetRetain(false)

	b := campusBounds(t)
	m := RectangleMetrics(b)
	require.NoError(t, publisher.PublishOverlay(b, m))

	msg, ok := client.Last("campus/overlay")
	require.True(t, ok)
	assert.Equal(t, byte(1), msg.QoS)
	assert.False(t, msg.Retain)

	var om OverlayMessage
	require.NoError(t, json.Unmarshal(msg.Payload, &om))
	assert.Equal(t, b, om.Bounds)
	assert.Equal(t, FormatArea(m), om.AreaLabel)
	assert.Equal(t, FormatPerimeter(m), om.PerimeterLabel)
}

func TestPublisher_PublishError(t *testing.T) {
	client := connectedMock()
	client.SetPublishError(errors.New("broker full"))
	publisher := NewPublisher(client, "campus")

	snap := Snapshot{Sequence: 1, Placements: PlaceAll(campusRobots(), campusBounds(t), campus.width, campus.height)}
	err := publisher.PublishSnapshot(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker full")
}

func TestPublisher_SetQoSIgnoresInvalid(t *testing.T) {
	publisher := NewPublisher(nil, "x")
	publisher.SetQoS(2)
	publisher.SetQoS(3)
	assert.Equal(t, byte(2), publisher.qos)
}
