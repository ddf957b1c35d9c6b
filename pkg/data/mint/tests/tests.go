package tests

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/database/query"
)

func RunTests(t *testing.T, s mint.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s mint.Store){
		testRoundTrip,
		testDuplicate,
		testInvalid,
		testGetAll,
	} {
		tf(t, s)
		teardown()
	}
}

func newRecord(t *testing.T) *mint.Record {
	address, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	authority, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sig := make([]byte, ed25519.SignatureSize)
	_, err = rand.Read(sig)
	require.NoError(t, err)

	return &mint.Record{
		Mint:      base58.Encode(address),
		Authority: base58.Encode(authority),
		Decimals:  9,
		Signature: base58.Encode(sig),
		CreatedAt: time.Now(),
	}
}

func testRoundTrip(t *testing.T, s mint.Store) {
	ctx := context.Background()

	expected := newRecord(t)

	_, err := s.Get(ctx, expected.Mint)
	assert.Equal(t, mint.ErrNotFound, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	require.NoError(t, s.Save(ctx, expected))
	assert.EqualValues(t, 1, expected.Id)

	actual, err := s.Get(ctx, expected.Mint)
	require.NoError(t, err)
	assert.Equal(t, expected.Id, actual.Id)
	assert.Equal(t, expected.Mint, actual.Mint)
	assert.Equal(t, expected.Authority, actual.Authority)
	assert.Equal(t, expected.Decimals, actual.Decimals)
	assert.Equal(t, expected.Signature, actual.Signature)
	assert.Equal(t, expected.CreatedAt.Unix(), actual.CreatedAt.Unix())

	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func testDuplicate(t *testing.T, s mint.Store) {
	ctx := context.Background()

	record := newRecord(t)
	require.NoError(t, s.Save(ctx, record))

	duplicate := newRecord(t)
	duplicate.Mint = record.Mint
	assert.Equal(t, mint.ErrExists, s.Save(ctx, duplicate))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func testInvalid(t *testing.T, s mint.Store) {
	ctx := context.Background()

	for _, mutate := range []func(r *mint.Record){
		func(r *mint.Record) { r.Mint = "" },
		func(r *mint.Record) { r.Authority = "not-base58" },
		func(r *mint.Record) { r.Signature = "" },
		func(r *mint.Record) { r.Signature = r.Mint },
	} {
		record := newRecord(t)
		mutate(record)
		assert.Error(t, s.Save(ctx, record))
	}

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func testGetAll(t *testing.T, s mint.Store) {
	ctx := context.Background()

	_, err := s.GetAll(ctx, query.EmptyCursor, 10, query.Ascending)
	assert.Equal(t, mint.ErrNotFound, err)

	var expected []*mint.Record
	for i := 0; i < 5; i++ {
		record := newRecord(t)
		require.NoError(t, s.Save(ctx, record))
		expected = append(expected, record)
	}

	actual, err := s.GetAll(ctx, query.EmptyCursor, 10, query.Ascending)
	require.NoError(t, err)
	require.Len(t, actual, 5)
	for i, record := range actual {
		assert.Equal(t, expected[i].Mint, record.Mint)
	}

	actual, err = s.GetAll(ctx, query.EmptyCursor, 2, query.Ascending)
	require.NoError(t, err)
	require.Len(t, actual, 2)
	assert.Equal(t, expected[0].Mint, actual[0].Mint)
	assert.Equal(t, expected[1].Mint, actual[1].Mint)

	actual, err = s.GetAll(ctx, query.ToCursor(actual[1].Id), 2, query.Ascending)
	require.NoError(t, err)
	require.Len(t, actual, 2)
	assert.Equal(t, expected[2].Mint, actual[0].Mint)
	assert.Equal(t, expected[3].Mint, actual[1].Mint)

	actual, err = s.GetAll(ctx, query.EmptyCursor, 2, query.Descending)
	require.NoError(t, err)
	require.Len(t, actual, 2)
	assert.Equal(t, expected[4].Mint, actual[0].Mint)
	assert.Equal(t, expected[3].Mint, actual[1].Mint)

	actual, err = s.GetAll(ctx, query.ToCursor(expected[1].Id), 10, query.Descending)
	require.NoError(t, err)
	require.Len(t, actual, 1)
	assert.Equal(t, expected[0].Mint, actual[0].Mint)

	_, err = s.GetAll(ctx, query.ToCursor(expected[4].Id), 10, query.Ascending)
	assert.Equal(t, mint.ErrNotFound, err)
}
