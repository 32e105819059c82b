package record_test

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"portage/internal/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, input string) *record.Record {
	t.Helper()

	rec, err := record.Parse(bufio.NewReader(strings.NewReader(input)))
	require.NoError(t, err)
	return rec
}

func TestParse(t *testing.T) {
	rec := parseOne(t, `[ command = "submit"; src_url = "file:///a"; max_attempts = 3; ]`)

	assert.Equal(t, "submit", rec.Get("command"))
	assert.Equal(t, "file:///a", rec.Get("src_url"))
	assert.Equal(t, 3, rec.GetInt("max_attempts", -1))
	assert.False(t, rec.Has("missing"))
	assert.Equal(t, 3, rec.Len())
}

func TestParseRoundTrip(t *testing.T) {
	rec := record.New()
	rec.Set("src_url", "file:///tmp/in")
	rec.Set("message", `quoted "text" and \backslash`)
	rec.SetInt("attempts", 2)
	rec.Set("empty", "")

	got := parseOne(t, rec.String())

	assert.Equal(t, rec.Map(), got.Map())
}

func TestParseStream(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("[ a = 1; ]\n[ b = 2; ]\n"))

	first, err := record.Parse(br)
	require.NoError(t, err)
	assert.Equal(t, 1, first.GetInt("a", -1))

	second, err := record.Parse(br)
	require.NoError(t, err)
	assert.Equal(t, 2, second.GetInt("b", -1))

	_, err = record.Parse(br)
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{
		"not a record",
		"[ key value ]",
		"[ key = ",
		"[ = 3; ]",
		"[ a = 1 b = 2 ]",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := record.Parse(bufio.NewReader(strings.NewReader(input)))
			assert.ErrorIs(t, err, record.ErrMalformed)
		})
	}
}

func TestParseEOF(t *testing.T) {
	for _, input := range []string{"", "   \n\t "} {
		_, err := record.Parse(bufio.NewReader(strings.NewReader(input)))
		assert.ErrorIs(t, err, io.EOF)
	}
}

func TestFilter(t *testing.T) {
	rec := record.New()
	rec.Set("src_url", "a")
	rec.Set("evil", "b")
	rec.Set("dest_url", "c")

	got := rec.Filter("src_url", "dest_url", "dap_type")

	assert.Equal(t, "a", got.Get("src_url"))
	assert.Equal(t, "c", got.Get("dest_url"))
	assert.False(t, got.Has("evil"))
	assert.Equal(t, 2, got.Len())
}

func TestMergeOverwrites(t *testing.T) {
	base := record.New()
	base.Set("a", "1")
	base.Set("b", "2")

	other := record.New()
	other.Set("b", "3")
	other.Set("c", "4")

	base.Merge(other)

	assert.Equal(t, "1", base.Get("a"))
	assert.Equal(t, "3", base.Get("b"))
	assert.Equal(t, "4", base.Get("c"))
}

func TestRemove(t *testing.T) {
	rec := record.New()
	rec.Set("a", "1")
	rec.Set("b", "2")
	rec.Remove("a")
	rec.Remove("never-there")

	assert.False(t, rec.Has("a"))
	assert.Equal(t, 1, rec.Len())
}

func TestCopyIsIndependent(t *testing.T) {
	rec := record.New()
	rec.Set("a", "1")

	cp := rec.Copy()
	cp.Set("a", "2")
	cp.Set("b", "3")

	assert.Equal(t, "1", rec.Get("a"))
	assert.False(t, rec.Has("b"))
}

func TestResponses(t *testing.T) {
	ok := record.Success()
	assert.True(t, record.IsSuccess(ok))
	assert.True(t, record.IsResponse(ok))

	bad := record.Error("boom")
	assert.True(t, record.IsError(bad))
	assert.Equal(t, "boom", bad.Get("message"))

	payload := record.New()
	payload.Set("bytes_copied", "42")
	assert.False(t, record.IsResponse(payload))
}
