package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crm-backend/internal/model"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	msgs := []model.Message{
		model.NewEmail("crm@acme.io", []string{"a@b.c"}, "Welcome", "hi"),
		model.NewSms("+100", []string{"+200"}, "hi"),
		model.NewInApp("device-1", "Remind", "come back"),
	}
	for _, m := range msgs {
		data, err := model.MarshalMessage(m)
		require.NoError(t, err)

		req, err := model.UnmarshalSendRequest(data)
		require.NoError(t, err)
		require.NotNil(t, req.Msg)
		assert.Equal(t, m, req.Msg)
	}
}

func TestUnknownEnvelopeTypeDecodesToNilMessage(t *testing.T) {
	req, err := model.UnmarshalSendRequest([]byte(`{"type":"fax","fax":{"message_id":"x"}}`))
	require.NoError(t, err)
	assert.Nil(t, req.Msg)

	req, err = model.UnmarshalSendRequest([]byte(`{"type":"email"}`))
	require.NoError(t, err)
	assert.Nil(t, req.Msg, "email tag without payload")

	_, err = model.UnmarshalSendRequest([]byte(`{not json`))
	assert.Error(t, err)
}

func TestNewMessageIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := model.NewEmail("s", nil, "", "").ID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestContentSnapshot(t *testing.T) {
	assert.Equal(t, 0, model.NewContentSnapshot(nil).Len())
	assert.Same(t, model.EmptySnapshot(), model.NewContentSnapshot(nil))

	snap := model.NewContentSnapshot([]model.Content{{ID: 3}, {ID: 1}})
	var ids []int64
	for _, c := range snap.All() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{3, 1}, ids)
	assert.Equal(t, int64(1), snap.At(1).ID)
}

func TestLastDaysWindow(t *testing.T) {
	now := mustTime(t, "2024-05-10T00:00:00Z")
	w := model.LastDays(now, 7)
	require.NotNil(t, w.Lower)
	require.NotNil(t, w.Upper)
	assert.True(t, w.Lower.Before(*w.Upper))
	assert.Equal(t, "2024-05-03T00:00:00Z", w.Lower.Format("2006-01-02T15:04:05Z07:00"))
}
