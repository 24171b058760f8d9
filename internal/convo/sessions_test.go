package convo

import (
	"testing"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCredentialIsScopedToRole(t *testing.T) {
	s := NewSessions(time.Hour, nil)
	sess, release := s.Acquire("c1")
	defer release()

	sess.SetCredential(ai.Credential{Provider: ai.RoleSecondary, Secret: "sk-test"})
	assert.Equal(t, "sk-test", sess.Credential(ai.RoleSecondary))
	assert.Empty(t, sess.Credential(ai.RolePrimary))

	sess.ClearCredential()
	assert.Empty(t, sess.Credential(ai.RoleSecondary))
}

func TestEvictIdleEndsOldSessions(t *testing.T) {
	m := metrics.New("test")
	s := NewSessions(time.Hour, m)
	now := refTime
	s.now = func() time.Time { return now }

	sess, release := s.Acquire("old")
	sess.SetCredential(ai.Credential{Provider: ai.RoleSecondary, Secret: "sk-test"})
	release()

	now = now.Add(30 * time.Minute)
	_, release = s.Acquire("fresh")
	release()

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, s.EvictIdle())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Empty(t, sess.Credential(ai.RoleSecondary))

	_, _, ok := s.Peek("old")
	assert.False(t, ok)
}

func TestEvictIdleSkipsBusySessions(t *testing.T) {
	s := NewSessions(time.Minute, nil)
	now := refTime
	s.now = func() time.Time { return now }

	_, release := s.Acquire("busy")
	now = now.Add(time.Hour)
	assert.Equal(t, 0, s.EvictIdle())
	release()

	now = now.Add(time.Hour)
	assert.Equal(t, 1, s.EvictIdle())
}

func TestTranscriptIsACopy(t *testing.T) {
	s := NewSessions(0, nil)
	sess, release := s.Acquire("c1")
	defer release()

	sess.Append(newMessage(SenderUser, Text("hello"), refTime))
	got := sess.Transcript()
	require.Len(t, got, 1)
	got[0].Content = Text("changed")
	assert.Equal(t, "hello", sess.Transcript()[0].PlainText())
	assert.Equal(t, 0, s.EvictIdle())
}

func TestAcquireSkipsSessionEndedWhileWaiting(t *testing.T) {
	s := NewSessions(time.Hour, nil)
	stale, release := s.Acquire("c1")
	stale.SetCredential(ai.Credential{Provider: ai.RoleSecondary, Secret: "sk-test"})

	got := make(chan *Session, 1)
	go func() {
		sess, rel := s.Acquire("c1")
		got <- sess
		rel()
	}()
	// let the waiter look up the stale session before it is ended
	time.Sleep(20 * time.Millisecond)

	ended := make(chan bool, 1)
	go func() { ended <- s.End("c1") }()
	require.Eventually(t, func() bool { return !s.registered("c1", stale) }, time.Second, 5*time.Millisecond)
	release()

	var sess *Session
	select {
	case sess = <-got:
	case <-time.After(time.Second):
		t.Fatal("acquire did not return")
	}
	assert.True(t, <-ended)
	assert.NotSame(t, stale, sess)
	assert.Empty(t, sess.Credential(ai.RoleSecondary))

	current, rel, ok := s.Peek("c1")
	require.True(t, ok)
	defer rel()
	assert.Same(t, sess, current)
}
