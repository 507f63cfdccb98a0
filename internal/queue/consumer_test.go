package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditConsumer_handleMessage(t *testing.T) {
	dir := t.TempDir()
	a := &AuditConsumer{Dir: dir, Log: zerolog.Nop()}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, typ := range []string{EventLogin, EventLogout} {
		body, err := json.Marshal(AuthEvent{Type: typ, UserID: 7, Mail: "a@b.com", Role: "CUSTOMER", OccurredAt: at})
		require.NoError(t, err)
		require.NoError(t, a.handleMessage(body))
	}

	got, err := os.ReadFile(filepath.Join(dir, "auth.log"))
	require.NoError(t, err)
	assert.Equal(t,
		"[2024-03-01T12:00:00Z] auth.login | user_id=7 | mail=\"a@b.com\" | role=CUSTOMER\n"+
			"[2024-03-01T12:00:00Z] auth.logout | user_id=7 | mail=\"a@b.com\" | role=CUSTOMER\n",
		string(got))
}

func TestAuditConsumer_rejectsBadPayload(t *testing.T) {
	a := &AuditConsumer{Dir: t.TempDir(), Log: zerolog.Nop()}

	assert.Error(t, a.handleMessage([]byte("not json")))
	assert.Error(t, a.handleMessage([]byte(`{"mail":"a@b.com"}`)))
}
