package project

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSourceStore_StoreAndFetch_RoundTrip(t *testing.T) {
	store, err := NewLocalSourceStore(t.TempDir())
	require.NoError(t, err)

	files := []SourceFile{
		{RelPath: "run.sh", Content: []byte("#!/bin/sh\necho hi\n")},
		{RelPath: "lib/helper.sh", Content: []byte("echo helper\n")},
	}

	ref, checksum, err := store.StoreSource(context.Background(), files)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	assert.NotEmpty(t, checksum)

	got, err := store.FetchSource(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run.sh", got[0].RelPath)
	assert.Equal(t, files[0].Content, got[0].Content)
	assert.Equal(t, "lib/helper.sh", got[1].RelPath)
	assert.Equal(t, files[1].Content, got[1].Content)
}

func TestLocalSourceStore_StoreSource_ChecksumIsDeterministic(t *testing.T) {
	store, err := NewLocalSourceStore(t.TempDir())
	require.NoError(t, err)

	files := []SourceFile{{RelPath: "a.txt", Content: []byte("same content")}}

	_, checksum1, err := store.StoreSource(context.Background(), files)
	require.NoError(t, err)
	_, checksum2, err := store.StoreSource(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, checksum1, checksum2)
}

func TestLocalSourceStore_FetchSource_RejectsPathTraversal(t *testing.T) {
	store, err := NewLocalSourceStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.FetchSource(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
}

func TestLocalSourceStore_DeleteSource_RemovesArchive(t *testing.T) {
	store, err := NewLocalSourceStore(t.TempDir())
	require.NoError(t, err)

	ref, _, err := store.StoreSource(context.Background(), []SourceFile{{RelPath: "a.txt", Content: []byte("x")}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSource(context.Background(), ref))

	_, err = store.FetchSource(context.Background(), ref)
	assert.Error(t, err)
}
