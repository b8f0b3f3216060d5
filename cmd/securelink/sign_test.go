package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/securelink/pkg/config"
	"github.com/praetorian-inc/securelink/pkg/publisher"
	"github.com/praetorian-inc/securelink/pkg/store"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	signUser = "alice"

	cmd, out := newTestCmd()
	require.NoError(t, runSign(cmd, []string{"https://example.com/fileadmin/docs/a b.pdf"}))

	link := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(link, "/securelink/a%20b.pdf?e="), link)
	assert.Contains(t, link, "u=alice")

	cmd, out = newTestCmd()
	require.NoError(t, runVerify(cmd, []string{link}))
	assert.Contains(t, out.String(), "Valid link")
	assert.Contains(t, out.String(), "Path: /fileadmin/docs/a b.pdf")
	assert.Contains(t, out.String(), "User: alice")
}

func TestSign_Expires(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)
	signExpires = 2 * time.Minute

	cmd, out := newTestCmd()
	require.NoError(t, runSign(cmd, []string{"/fileadmin/a.pdf"}))

	signer, err := publisher.SignerFrom(cfg.Publisher)
	require.NoError(t, err)
	link, err := signer.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), link.Expires, 5*time.Second)
}

func TestVerify_Rejects(t *testing.T) {
	resetFlags(t)
	useConfig(t, nil)

	cmd, out := newTestCmd()
	require.NoError(t, runSign(cmd, []string{"/fileadmin/a.pdf"}))
	link := strings.TrimSpace(out.String())

	cmd, _ = newTestCmd()
	err := runVerify(cmd, []string{strings.Replace(link, "a.pdf?", "b.pdf?", 1)})
	assert.ErrorIs(t, err, publisher.ErrBadSignature)

	// A different secret does not accept the link.
	cfg.Publisher.Secret = "other"
	cmd, _ = newTestCmd()
	err = runVerify(cmd, []string{link})
	assert.ErrorIs(t, err, publisher.ErrBadSignature)
}

func TestSign_BackendRecordsLedger(t *testing.T) {
	resetFlags(t)
	ledger := filepath.Join(t.TempDir(), "ledger.db")
	useConfig(t, func(c *config.Config) { c.Ledger.Path = ledger })
	signBackend = true

	cmd, out := newTestCmd()
	require.NoError(t, runSign(cmd, []string{"/fileadmin/a.pdf"}))
	assert.Contains(t, out.String(), "/securelink/a.pdf?e=")

	st, err := store.New(context.Background(), store.Config{Path: ledger})
	require.NoError(t, err)
	defer st.Close()

	pubs, err := st.GetPublications(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, pubs, 1)
	assert.Equal(t, "/fileadmin/a.pdf", pubs[0].Path)
	assert.Equal(t, "cli", pubs[0].Source)
	assert.Equal(t, "signer", pubs[0].Backend)
}
