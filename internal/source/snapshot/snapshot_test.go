package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pwexport/internal/extract"
	"pwexport/internal/models"
	"pwexport/internal/source"
	_ "pwexport/internal/source/snapshot"
)

func openSnapshot(t *testing.T, path string) source.Session {
	t.Helper()

	p, ok := source.Get("snapshot")
	require.True(t, ok)
	sess, err := p.Open(context.Background(), source.Options{SnapshotPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestSnapshot_ReplaysRowSamples(t *testing.T) {
	t.Parallel()

	sess := openSnapshot(t, "testdata/vault.html")

	var got []int
	for i := 0; i < 5; i++ {
		n, err := sess.RowCount()
		require.NoError(t, err)
		got = append(got, n)
	}
	assert.Equal(t, []int{0, 2, 4, 4, 4}, got)
}

func TestSnapshot_ReadsDetail(t *testing.T) {
	t.Parallel()

	sess := openSnapshot(t, "testdata/vault.html")
	require.NoError(t, sess.SelectRow(1))
	h, err := sess.OpenDetail(1)
	require.NoError(t, err)

	urls, err := sess.ReadDetailURLs(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://bank.example/login", "", "https://m.bank.example"}, urls)

	user, err := sess.ReadUsername(h)
	require.NoError(t, err)
	assert.Equal(t, "alice", user)

	pass, err := sess.ReadPassword(h)
	require.NoError(t, err)
	assert.Equal(t, `p,w "1"`, pass)

	require.NoError(t, sess.CloseDetail(h))
	assert.Error(t, sess.CloseDetail(h), "second close must be rejected")
}

func TestSnapshot_KeepsCredentialWhitespace(t *testing.T) {
	t.Parallel()

	page := `<table><tbody><tr data-row="1"><td>Padded</td></tr></tbody></table>
<div class="detail-view" data-detail="1">
  <input class="detail-url" value="  https://padded.example  ">
  <input class="detail-username" value=" bob ">
  <input class="detail-password" value="  secret  ">
</div>`
	path := filepath.Join(t.TempDir(), "padded.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o600))

	p, ok := source.Get("snapshot")
	require.True(t, ok)
	sel := source.DefaultSelectors()
	sel.Row = "tr[data-row]"
	sess, err := p.Open(context.Background(), source.Options{SnapshotPath: path, Selectors: sel})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	require.NoError(t, sess.SelectRow(1))
	h, err := sess.OpenDetail(1)
	require.NoError(t, err)

	urls, err := sess.ReadDetailURLs(h)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://padded.example"}, urls)

	user, err := sess.ReadUsername(h)
	require.NoError(t, err)
	assert.Equal(t, " bob ", user)

	pass, err := sess.ReadPassword(h)
	require.NoError(t, err)
	assert.Equal(t, "  secret  ", pass)

	require.NoError(t, sess.CloseDetail(h))
}

func TestSnapshot_RejectsReentrantOpen(t *testing.T) {
	t.Parallel()

	sess := openSnapshot(t, "testdata/vault.html")
	require.NoError(t, sess.SelectRow(1))
	h, err := sess.OpenDetail(1)
	require.NoError(t, err)

	_, err = sess.OpenDetail(1)
	assert.Error(t, err)

	require.NoError(t, sess.CloseDetail(h))
}

func TestSnapshot_FlakyAndMissingRows(t *testing.T) {
	t.Parallel()

	sess := openSnapshot(t, "testdata/vault.html")

	require.NoError(t, sess.SelectRow(2))
	_, err := sess.OpenDetail(2)
	assert.ErrorIs(t, err, source.ErrOpenFailure)
	h, err := sess.OpenDetail(2)
	require.NoError(t, err)
	require.NoError(t, sess.CloseDetail(h))

	require.NoError(t, sess.SelectRow(3))
	_, err = sess.OpenDetail(3)
	assert.ErrorIs(t, err, source.ErrOpenFailure)

	require.NoError(t, sess.SelectRow(4))
	h, err = sess.OpenDetail(4)
	require.NoError(t, err)
	_, err = sess.ReadUsername(h)
	assert.Error(t, err)
	require.NoError(t, sess.CloseDetail(h))
}

func TestSnapshot_Extract(t *testing.T) {
	t.Parallel()

	sess := openSnapshot(t, "testdata/vault.html")
	res, err := extract.New(extract.Config{MaxAttempts: 10, Timeout: 5 * time.Second}, nil, nil).
		Extract(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 4, res.StableCount)
	assert.Equal(t, 1, res.FailedRowCount)
	assert.Equal(t, []models.Entry{
		{
			Title:          "https://bank.example/login",
			SiteURL:        "https://bank.example/login",
			Username:       "alice",
			Password:       `p,w "1"`,
			AdditionalURLs: []string{"https://m.bank.example"},
		},
		{
			Title:    "https://mail.example",
			SiteURL:  "https://mail.example",
			Username: "alice@mail.example",
			Password: "hunter2",
		},
		{
			Title:    "https://forum.example",
			SiteURL:  "https://forum.example",
			Password: "open sesame",
		},
	}, res.Entries)
}

func TestSnapshot_RemovedFileStopsSource(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile("testdata/vault.html")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "vault.html")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	sess := openSnapshot(t, path)
	assert.True(t, sess.IsSourceRunning())
	require.NoError(t, os.Remove(path))
	assert.False(t, sess.IsSourceRunning())
}

func TestSnapshot_MissingPath(t *testing.T) {
	t.Parallel()

	p, _ := source.Get("snapshot")
	_, err := p.Open(context.Background(), source.Options{})
	assert.Error(t, err)
}
