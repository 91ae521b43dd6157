package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventReaderSkipsKeepalivesAndJoinsData(t *testing.T) {
	stream := ": keepalive\n\n" +
		"event: status\ndata: {\"queue_size\":1}\n\n" +
		"data: orphan\n\n" +
		"event: note\ndata: a\ndata: b\n\n"
	events := newEventReader(strings.NewReader(stream))

	event, data, err := events.Next()
	require.NoError(t, err)
	assert.Equal(t, "status", event)
	assert.JSONEq(t, `{"queue_size":1}`, data)

	event, data, err = events.Next()
	require.NoError(t, err)
	assert.Equal(t, "note", event)
	assert.Equal(t, "a\nb", data)

	_, _, err = events.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPrintEventSummarisesStatus(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, "status", `{"queue_size":3,"active_games":1}`, false)
	assert.Contains(t, buf.String(), "queue=3 games=1")
}
