package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRecords(t *testing.T, chunks ...string) []Record {
	t.Helper()
	var got []Record
	d := New(func(r Record) error {
		got = append(got, r)
		return nil
	})
	for _, c := range chunks {
		require.NoError(t, d.Feed([]byte(c)))
	}
	return got
}

func TestSingleChunkEvent(t *testing.T) {
	got := collectRecords(t, "event: message_start\ndata: {\"a\":1}\n\n")
	require.Len(t, got, 1)
	assert.Equal(t, "message_start", got[0].Event)
	assert.Equal(t, `{"a":1}`, got[0].Data)
}

func TestByteAtATimeMatchesSingleChunk(t *testing.T) {
	whole := "event: x\ndata: line1\ndata: line2\nid: 42\n\n"
	oneShot := collectRecords(t, whole)

	var chunked []string
	for _, b := range []byte(whole) {
		chunked = append(chunked, string(b))
	}
	byteAtATime := collectRecords(t, chunked...)

	assert.Equal(t, oneShot, byteAtATime)
	require.Len(t, oneShot, 1)
	assert.Equal(t, "line1\nline2", oneShot[0].Data)
	assert.Equal(t, "42", oneShot[0].ID)
}

func TestCommentLinesIgnored(t *testing.T) {
	got := collectRecords(t, ": this is a comment\ndata: hi\n\n")
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Data)
}

func TestEmptyDataNeverDispatches(t *testing.T) {
	got := collectRecords(t, "\n\n\n")
	assert.Empty(t, got)
}

func TestCRLFCollapsedToOneTerminator(t *testing.T) {
	got := collectRecords(t, "data: hi\r\n\r\n")
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Data)
}

func TestMultipleRecordsAcrossFeeds(t *testing.T) {
	d := New(nil)
	var got []Record
	d.handler = func(r Record) error { got = append(got, r); return nil }

	require.NoError(t, d.Feed([]byte("data: first\n\ndata: sec")))
	require.NoError(t, d.Feed([]byte("ond\n\n")))

	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Data)
	assert.Equal(t, "second", got[1].Data)
}

func TestHandlerErrorAbortsStream(t *testing.T) {
	d := New(func(r Record) error { return assert.AnError })
	err := d.Feed([]byte("data: boom\n\n"))
	require.Error(t, err)

	err = d.Feed([]byte("data: more\n\n"))
	assert.Error(t, err, "feed after abort must fail")
}

func TestUnrecognizedFieldIgnored(t *testing.T) {
	got := collectRecords(t, "retry: 5000\ndata: hi\n\n")
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Data)
}
