package ingest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
)

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSourceRun(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Time: now, Value: []byte(`{"item":"Light","state":"ON"}`)},
		{Offset: 2, Time: now, Value: []byte(`{broken`)},
		{Offset: 3, Time: now, Value: []byte(`{"item":"Light","state":"OFF","time":1709280000000}`)},
	}}
	logger, _ := test.NewNullLogger()
	src := &KafkaSource{reader: reader, logger: logger.WithField("component", "kafka")}

	out := make(chan models.StateUpdate, 3)
	err := src.Run(context.Background(), out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF))
	close(out)

	var got []models.StateUpdate
	for u := range out {
		got = append(got, u)
	}
	require.Len(t, got, 2)
	assert.Equal(t, state.On, got[0].State)
	assert.Equal(t, now, got[0].Time)
	assert.Equal(t, time.UnixMilli(1709280000000).UTC(), got[1].Time)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)

	require.NoError(t, src.Close())
	assert.True(t, reader.closed)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTHandler(t *testing.T) {
	logger, _ := test.NewNullLogger()
	src := &MQTTSource{topic: "items/+/state", logger: logger.WithField("component", "mqtt")}

	out := make(chan models.StateUpdate, 2)
	handle := src.handler(context.Background(), out)
	handle(nil, fakeMessage{topic: "items/Boiler/state", payload: []byte("55.5 °C")})
	handle(nil, fakeMessage{topic: "items/Boiler/state", payload: []byte("lukewarm")})

	require.Len(t, out, 1)
	u := <-out
	assert.Equal(t, "Boiler", u.Item)
	assert.Equal(t, 55.5, u.State.(state.Quantity).Value)
}
