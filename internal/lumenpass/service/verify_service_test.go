package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/secure"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store/memory"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/token"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testCodec(t *testing.T) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(make([]byte, secure.KeySize))
	require.NoError(t, err)
	return c
}

func testSealer(t *testing.T) *secure.Sealer {
	t.Helper()
	s, err := secure.NewSealer(make([]byte, secure.KeySize))
	require.NoError(t, err)
	return s
}

// fixture wires a verification engine and an issuer over in-memory
// stores, with both clocks pinned to a controllable instant.
type fixture struct {
	issuer   *IssuerService
	verifier *VerifyService
	creds    *memory.CredentialStore
	attempts *memory.ScanAttemptStore
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		creds:    memory.NewCredentialStore(),
		attempts: memory.NewScanAttemptStore(),
		now:      time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}

	codec := testCodec(t)
	f.issuer = NewIssuerService(codec, testSealer(t), f.creds, IssuePolicy{}, silentLogger())
	f.verifier = NewVerifyService(codec, f.creds, f.attempts, silentLogger())

	f.issuer.now = func() time.Time { return f.now }
	f.verifier.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) issue(t *testing.T, ttl time.Duration) IssuedCredential {
	t.Helper()
	issued, err := f.issuer.Issue(context.Background(), IssueParams{Subject: "alice", TTL: ttl})
	require.NoError(t, err)
	return issued
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestVerify_AdmitThenDuplicate(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, 60*time.Second)

	f.advance(30 * time.Second)
	resp, err := f.verifier.Verify(context.Background(), Submission{
		Payload: issued.Payload,
		Source:  store.SourceMobileUpload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdmitted, resp.Outcome)
	assert.Equal(t, "alice", resp.Subject)
	assert.Empty(t, resp.Reason)

	f.advance(time.Second)
	resp, err = f.verifier.Verify(context.Background(), Submission{
		Payload: issued.Payload,
		Source:  store.SourceMobileUpload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, resp.Outcome)
	assert.Equal(t, ReasonDuplicateScan, resp.Reason)
	assert.Empty(t, resp.Subject)

	attempts := f.attempts.Attempts()
	require.Len(t, attempts, 2)
	assert.True(t, attempts[0].Admitted)
	assert.False(t, attempts[1].Admitted)
	require.NotNil(t, attempts[0].CredentialID)
	assert.Equal(t, issued.Record.ID, *attempts[0].CredentialID)
}

func TestVerify_Expired(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, 60*time.Second)

	f.advance(9999 * time.Second)
	resp, err := f.verifier.Verify(context.Background(), Submission{
		Payload: issued.Payload,
		Source:  store.SourceMobileUpload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, resp.Outcome)
	assert.Equal(t, ReasonExpired, resp.Reason)

	// The credential was never consumed.
	rec, _, err := f.creds.Get(context.Background(), issued.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUnused, rec.Status)
}

func TestVerify_ExpiryHasNoCheckThenUseGap(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, 60*time.Second)

	// The clock lands exactly on the deadline at the consume instant:
	// submitted "microseconds before", consumed "microseconds after".
	f.advance(60 * time.Second)
	resp, err := f.verifier.Verify(context.Background(), Submission{
		Payload: issued.Payload,
		Source:  store.SourceMobileUpload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, resp.Outcome)
	assert.Equal(t, ReasonExpired, resp.Reason)
}

func TestVerify_RevokedThenScan(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, time.Hour)

	_, err := f.issuer.Revoke(context.Background(), issued.Record.ID)
	require.NoError(t, err)

	resp, err := f.verifier.Verify(context.Background(), Submission{
		Payload: issued.Payload,
		Source:  store.SourceLocalCamera,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, resp.Outcome)
	assert.Equal(t, ReasonRevoked, resp.Reason)
}

func TestVerify_DecodeFailures(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, time.Hour)

	// Flip the first character of the tag segment; its 6 bits map fully
	// onto the tag's first byte, so the decoded tag is guaranteed to
	// change.
	tampered := []byte(issued.Payload)
	i := strings.LastIndexByte(issued.Payload, '.') + 1
	if tampered[i] == 'A' {
		tampered[i] = 'B'
	} else {
		tampered[i] = 'A'
	}

	cases := []struct {
		name    string
		payload string
		reason  string
	}{
		{"malformed", "not-a-payload", ReasonMalformed},
		{"tampered tag", string(tampered), ReasonTagMismatch},
		{"unsupported version", "lp9" + issued.Payload[3:], ReasonUnsupported},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := f.verifier.Verify(context.Background(), Submission{
				Payload: tc.payload,
				Source:  store.SourceMobileUpload,
			})
			require.NoError(t, err)
			assert.Equal(t, OutcomeDenied, resp.Outcome)
			assert.Equal(t, tc.reason, resp.Reason)
		})
	}

	// Each failure produced an audit row without a credential reference.
	attempts := f.attempts.Attempts()
	require.Len(t, attempts, len(cases))
	for _, rec := range attempts {
		assert.Nil(t, rec.CredentialID)
		assert.False(t, rec.Admitted)
		assert.Len(t, rec.PayloadHash, 32)
	}
}

func TestVerify_UnknownCredential(t *testing.T) {
	f := newFixture(t)

	// A payload signed with the right key whose id was never issued.
	codec := testCodec(t)
	payload, err := codec.Encode("ghost-credential", f.now.Add(time.Hour))
	require.NoError(t, err)

	resp, err := f.verifier.Verify(context.Background(), Submission{
		Payload: payload,
		Source:  store.SourceMobileUpload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, resp.Outcome)
	assert.Equal(t, ReasonUnknownCredential, resp.Reason)

	attempts := f.attempts.Attempts()
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].CredentialID)
	assert.Equal(t, "ghost-credential", *attempts[0].CredentialID)
}

func TestVerify_ConcurrentScans_ExactlyOneAdmitted(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, time.Hour)

	const racers = 32
	outcomes := make([]string, racers)
	reasons := make([]string, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.verifier.Verify(context.Background(), Submission{
				Payload: issued.Payload,
				Source:  store.SourceMobileUpload,
			})
			outcomes[i], reasons[i], errs[i] = resp.Outcome, resp.Reason, err
		}(i)
	}
	wg.Wait()

	var admitted, duplicates int
	for i := 0; i < racers; i++ {
		require.NoError(t, errs[i], "racer %d", i)
		switch outcomes[i] {
		case OutcomeAdmitted:
			admitted++
		case OutcomeDenied:
			assert.Equal(t, ReasonDuplicateScan, reasons[i], "racer %d", i)
			duplicates++
		}
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, racers-1, duplicates)

	// Exactly one audit row per submission, exactly one admitted.
	attempts := f.attempts.Attempts()
	require.Len(t, attempts, racers)
	var admittedRows int
	for _, rec := range attempts {
		if rec.Admitted {
			admittedRows++
		}
	}
	assert.Equal(t, 1, admittedRows)
}

// failingAttemptStore simulates an audit log whose writes fail.
type failingAttemptStore struct{}

func (failingAttemptStore) Record(context.Context, store.ScanAttemptRecord) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingAttemptStore) List(context.Context, *time.Time, int) ([]store.ScanAttemptRecord, error) {
	return nil, errors.New("disk full")
}

func TestVerify_AuditWriteFailure(t *testing.T) {
	creds := memory.NewCredentialStore()
	codec := testCodec(t)
	issuer := NewIssuerService(codec, testSealer(t), creds, IssuePolicy{}, silentLogger())
	verifier := NewVerifyService(codec, creds, failingAttemptStore{}, silentLogger())

	issued, err := issuer.Issue(context.Background(), IssueParams{Subject: "alice", TTL: time.Hour})
	require.NoError(t, err)

	// Admission already durable: the response must still be admitted.
	resp, err := verifier.Verify(context.Background(), Submission{
		Payload: issued.Payload,
		Source:  store.SourceMobileUpload,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdmitted, resp.Outcome)

	// A denial that cannot be audited is reported as a system error so
	// the caller retries, never as a denied outcome.
	_, err = verifier.Verify(context.Background(), Submission{
		Payload: issued.Payload,
		Source:  store.SourceMobileUpload,
	})
	require.Error(t, err)

	_, err = verifier.Verify(context.Background(), Submission{
		Payload: "garbage",
		Source:  store.SourceMobileUpload,
	})
	require.Error(t, err)
}
