package evallog_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/evalgrep/pkg/evallog"
)

const transcriptJSON = `{
  "id": "s1",
  "epoch": 3,
  "input": [{"role": "user", "content": "ignored"}],
  "metadata": {"nested": {"deep": [1, 2, {"x": null}]}},
  "messages": [
    {"role": "system", "content": "be terse"},
    {"role": "user", "content": "hello world", "source": "input"},
    {"role": "assistant", "content": "hi", "tool_calls": []},
    {"role": "tool", "content": "result: world"},
    {"role": "assistant", "content": "done"}
  ],
  "scores": {"match": {"value": "C"}}
}`

func keepAll(evallog.Message) bool { return true }

func keepNone(evallog.Message) bool { return false }

func TestDecodeSample_KeepAll(t *testing.T) {
	t.Parallel()

	sample, err := evallog.DecodeSample([]byte(transcriptJSON), keepAll)
	require.NoError(t, err)

	assert.Equal(t, "s1", sample.ID)
	assert.Equal(t, int64(3), sample.Epoch)
	require.Len(t, sample.Messages, 5)
	assert.Equal(t, 5, sample.Present())

	assert.Equal(t, evallog.Message{Role: evallog.RoleSystem, Content: "be terse"}, *sample.Messages[0])
	assert.Equal(t, evallog.Message{Role: evallog.RoleUser, Content: "hello world"}, *sample.Messages[1])
	assert.Equal(t, evallog.Message{Role: evallog.RoleAssistant, Content: "hi"}, *sample.Messages[2])
	assert.Equal(t, evallog.Message{Role: evallog.RoleTool, Content: "result: world"}, *sample.Messages[3])
	assert.Equal(t, evallog.Message{Role: evallog.RoleAssistant, Content: "done"}, *sample.Messages[4])
}

func TestDecodeSample_NilPredicateKeepsAll(t *testing.T) {
	t.Parallel()

	sample, err := evallog.DecodeSample([]byte(transcriptJSON), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, sample.Present())
}

func TestDecodeSample_KeepNonePreservesLength(t *testing.T) {
	t.Parallel()

	sample, err := evallog.DecodeSample([]byte(transcriptJSON), keepNone)
	require.NoError(t, err)

	require.Len(t, sample.Messages, 5)
	assert.Zero(t, sample.Present())

	for _, msg := range sample.Messages {
		assert.Nil(t, msg)
	}
}

func TestDecodeSample_PresenceFollowsPredicate(t *testing.T) {
	t.Parallel()

	keepWorld := func(msg evallog.Message) bool {
		return strings.Contains(msg.Content, "world")
	}

	sample, err := evallog.DecodeSample([]byte(transcriptJSON), keepWorld)
	require.NoError(t, err)
	require.Len(t, sample.Messages, 5)

	assert.Nil(t, sample.Messages[0])
	require.NotNil(t, sample.Messages[1])
	assert.Equal(t, "hello world", sample.Messages[1].Content)
	assert.Nil(t, sample.Messages[2])
	require.NotNil(t, sample.Messages[3])
	assert.Equal(t, evallog.RoleTool, sample.Messages[3].Role)
	assert.Nil(t, sample.Messages[4])
}

func TestDecodeSample_PredicateCalledOncePerElementInOrder(t *testing.T) {
	t.Parallel()

	var seen []string

	record := func(msg evallog.Message) bool {
		seen = append(seen, msg.Content)

		return len(seen)%2 == 0
	}

	sample, err := evallog.DecodeSample([]byte(transcriptJSON), record)
	require.NoError(t, err)

	assert.Equal(t, []string{"be terse", "hello world", "hi", "result: world", "done"}, seen)
	assert.Equal(t, 2, sample.Present())
}

func TestDecodeSample_LengthMatchesSourceForManyMessages(t *testing.T) {
	t.Parallel()

	const count = 257

	var builder strings.Builder

	builder.WriteString(`{"id":"big","epoch":1,"messages":[`)

	for i := range count {
		if i > 0 {
			builder.WriteString(",")
		}

		fmt.Fprintf(&builder, `{"role":"user","content":"m%d"}`, i)
	}

	builder.WriteString(`]}`)

	keepMultiplesOfTen := func(msg evallog.Message) bool {
		return strings.HasSuffix(msg.Content, "0")
	}

	sample, err := evallog.DecodeSample([]byte(builder.String()), keepMultiplesOfTen)
	require.NoError(t, err)
	require.Len(t, sample.Messages, count)

	for i, msg := range sample.Messages {
		want := fmt.Sprintf("m%d", i)

		if i%10 == 0 {
			require.NotNil(t, msg, "index %d", i)
			assert.Equal(t, want, msg.Content)
		} else {
			assert.Nil(t, msg, "index %d", i)
		}
	}
}

func TestDecodeSample_Idempotent(t *testing.T) {
	t.Parallel()

	keepUser := func(msg evallog.Message) bool { return msg.Role == evallog.RoleUser }

	first, err := evallog.DecodeSample([]byte(transcriptJSON), keepUser)
	require.NoError(t, err)

	second, err := evallog.DecodeSample([]byte(transcriptJSON), keepUser)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecodeSample_FieldOrderIndependent(t *testing.T) {
	t.Parallel()

	data := `{"messages":[{"content":"x","role":"user"}],"extra":true,"epoch":0,"id":"late"}`

	sample, err := evallog.DecodeSample([]byte(data), keepAll)
	require.NoError(t, err)

	assert.Equal(t, "late", sample.ID)
	assert.Equal(t, int64(0), sample.Epoch)
	require.Len(t, sample.Messages, 1)
	assert.Equal(t, "x", sample.Messages[0].Content)
}

func TestDecodeSample_NumericID(t *testing.T) {
	t.Parallel()

	sample, err := evallog.DecodeSample([]byte(`{"id":42,"epoch":1,"messages":[]}`), keepAll)
	require.NoError(t, err)
	assert.Equal(t, "42", sample.ID)
}

func TestDecodeSample_MissingOrNullMessages(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		`{"id":"a","epoch":1}`,
		`{"id":"a","epoch":1,"messages":null}`,
		`{"id":"a","epoch":1,"messages":[]}`,
	} {
		sample, err := evallog.DecodeSample([]byte(data), keepAll)
		require.NoError(t, err, data)
		assert.NotNil(t, sample.Messages, data)
		assert.Empty(t, sample.Messages, data)
	}
}

func TestDecodeSample_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		data  string
		field string
	}{
		{name: "id", data: `{"epoch":1,"messages":[]}`, field: "id"},
		{name: "epoch", data: `{"id":"a","messages":[]}`, field: "epoch"},
		{name: "both reports id first", data: `{"messages":[]}`, field: "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := evallog.DecodeSample([]byte(tt.data), keepAll)
			require.ErrorIs(t, err, evallog.ErrMissingField)

			var missing *evallog.MissingFieldError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, tt.field, missing.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDecodeSample_InvalidMessagesFailWholeSample(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		elem string
	}{
		{name: "missing role", elem: `{"content":"x"}`},
		{name: "missing content", elem: `{"role":"user"}`},
		{name: "unknown role", elem: `{"role":"narrator","content":"x"}`},
		{name: "content not a string", elem: `{"role":"user","content":[{"type":"text","text":"x"}]}`},
		{name: "element not an object", elem: `"user: x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := `{"id":"a","epoch":1,"messages":[{"role":"user","content":"ok"},` + tt.elem + `]}`

			sample, err := evallog.DecodeSample([]byte(data), keepNone)
			require.ErrorIs(t, err, evallog.ErrInvalidMessage)
			assert.Nil(t, sample)
			assert.Contains(t, err.Error(), "index 1")
		})
	}
}

func TestDecodeSample_UnknownRoleIsCategorized(t *testing.T) {
	t.Parallel()

	for _, role := range []string{"bot", "USER", " user ", " Assistant ", "Tool"} {
		data := fmt.Sprintf(`{"id":"a","epoch":1,"messages":[{"role":%q,"content":"x"}]}`, role)

		_, err := evallog.DecodeSample([]byte(data), keepAll)
		require.ErrorIs(t, err, evallog.ErrInvalidMessage, "role %q", role)
		require.ErrorIs(t, err, evallog.ErrUnknownRole, "role %q", role)
	}
}

func TestDecodeSample_AgreesWithSchemaOnRoleCase(t *testing.T) {
	t.Parallel()

	data := []byte(`{"id":"a","epoch":1,"messages":[{"role":"USER","content":"x"}]}`)

	_, decodeErr := evallog.DecodeSample(data, keepAll)
	require.Error(t, decodeErr)

	result, err := evallog.ValidateSample(data)
	require.NoError(t, err)
	assert.False(t, result.Valid())
}

func TestDecodeSample_InvalidUTF8Content(t *testing.T) {
	t.Parallel()

	data := []byte("{\"id\":\"a\",\"epoch\":1,\"messages\":[{\"role\":\"user\",\"content\":\"bad \xff\"}]}")

	_, err := evallog.DecodeSample(data, keepAll)
	require.ErrorIs(t, err, evallog.ErrInvalidMessage)
	require.ErrorIs(t, err, evallog.ErrInvalidUTF8)
	assert.Contains(t, err.Error(), "index 0")
	assert.Contains(t, err.Error(), "not valid UTF-8")

	_, err = evallog.DecodeSampleReader(strings.NewReader(string(data)), keepAll)
	require.ErrorIs(t, err, evallog.ErrInvalidUTF8)
}

func TestDecodeSample_Malformed(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		``,
		`[]`,
		`"sample"`,
		`{"id":"a","epoch":1,"messages":{}}`,
		`{"id":"a","epoch":"one","messages":[]}`,
		`{"id":"a","epoch":1.5,"messages":[]}`,
		`{"id":["a"],"epoch":1,"messages":[]}`,
		`{"id":"a","epoch":1,"messages":[`,
	} {
		_, err := evallog.DecodeSample([]byte(data), keepAll)
		require.Error(t, err, data)
	}
}

func TestDecodeSampleReader_MatchesBytesForm(t *testing.T) {
	t.Parallel()

	fromBytes, err := evallog.DecodeSample([]byte(transcriptJSON), keepAll)
	require.NoError(t, err)

	fromReader, err := evallog.DecodeSampleReader(strings.NewReader(transcriptJSON), keepAll)
	require.NoError(t, err)

	assert.Equal(t, fromBytes, fromReader)
}
