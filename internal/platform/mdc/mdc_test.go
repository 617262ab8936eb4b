package mdc

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_PutGet(t *testing.T) {
	m := New()
	m.PutString("req.requestMethod", "GET")
	m.Put("req.queryString", nil)

	v, ok := m.Get("req.requestMethod")
	require.True(t, ok)
	require.NotNil(t, v)
	assert.Equal(t, "GET", *v)

	v, ok = m.Get("req.queryString")
	assert.True(t, ok, "explicit null must still be present")
	assert.Nil(t, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"req.queryString", "req.requestMethod"}, m.Keys())
}

func TestContext_PutCopiesValue(t *testing.T) {
	m := New()
	s := "before"
	m.Put("k", &s)
	s = "after"
	v, _ := m.Get("k")
	assert.Equal(t, "before", *v)
}

func TestContext_Clear(t *testing.T) {
	m := New()
	m.PutString("a", "1")
	m.PutString("b", "2")
	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestFromContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	m := New()
	ctx := WithContext(context.Background(), m)
	assert.Same(t, m, FromContext(ctx))
}

func TestHook_AddsEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(Hook{})

	m := New()
	m.PutString("req.requestMethod", "GET")
	m.Put("req.clientSSL.DN", nil)
	ctx := WithContext(context.Background(), m)

	logger.Info().Ctx(ctx).Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "GET", line["req.requestMethod"])
	dn, present := line["req.clientSSL.DN"]
	assert.True(t, present)
	assert.Nil(t, dn)
}

func TestHook_NothingAfterClear(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(Hook{})

	m := New()
	m.PutString("req.requestMethod", "GET")
	ctx := WithContext(context.Background(), m)
	m.Clear()

	logger.Info().Ctx(ctx).Msg("after")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	_, present := line["req.requestMethod"]
	assert.False(t, present)
}
