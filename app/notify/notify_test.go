package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

// senderMock records sent messages and can fail a configured number of times
type senderMock struct {
	mu       sync.Mutex
	failures int
	dests    []string
	bodies   []string
}

func (m *senderMock) Send(_ context.Context, destination, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return fmt.Errorf("smtp unavailable")
	}
	m.dests = append(m.dests, destination)
	m.bodies = append(m.bodies, text)
	return nil
}

func newTestService(sender *senderMock) *Service {
	svc := New(Params{
		Host:          "smtp.example.com",
		From:          "dispatch@example.com",
		To:            []string{"ops@example.com"},
		RetryAttempts: 3,
		RetryDuration: time.Millisecond,
	})
	svc.Sender = sender
	return svc
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(Params{To: []string{"x@example.com"}}), "no host means disabled")
	assert.Nil(t, New(Params{Host: "smtp.example.com"}), "no recipients means disabled")

	svc := New(Params{Host: "smtp.example.com", To: []string{"x@example.com"}})
	require.NotNil(t, svc)
	assert.NotNil(t, svc.Sender)
}

func TestService_nilIsNoop(t *testing.T) {
	var svc *Service
	ctx := context.Background()
	assert.NoError(t, svc.OnRequestSubmitted(ctx, store.UCIDRequest{}))
	assert.NoError(t, svc.OnRequestCompleted(ctx, store.UCIDRequest{}))
	assert.NoError(t, svc.OnArtworkReviewed(ctx, store.ArtworkSubmission{}))
	assert.NoError(t, svc.OnJobOverdue(ctx, store.Job{}))
}

func TestService_OnRequestSubmitted(t *testing.T) {
	sender := &senderMock{}
	svc := newTestService(sender)

	req := store.UCIDRequest{
		Type:            enums.RequestTypeUCID,
		ClientName:      "Northgate Council",
		RequestorEmail:  "user@example.com",
		CollectionPoint: "Depot 3",
		Comments:        "urgent please",
	}
	require.NoError(t, svc.OnRequestSubmitted(context.Background(), req))

	require.Len(t, sender.dests, 1)
	assert.Contains(t, sender.dests[0], "mailto:ops@example.com")
	assert.Contains(t, sender.dests[0], "from=dispatch%40example.com")

	body := sender.bodies[0]
	assert.Contains(t, body, "submitted")
	assert.Contains(t, body, "Northgate Council")
	assert.Contains(t, body, "Depot 3")
	assert.Contains(t, body, "urgent please")
}

func TestService_OnRequestCompleted(t *testing.T) {
	sender := &senderMock{}
	svc := newTestService(sender)

	req := store.UCIDRequest{
		Type:            enums.RequestTypeSCID,
		ClientName:      "Harlow Mutual",
		RequestorEmail:  "user@example.com",
		SupplyChainName: "Statements Chain",
		CompletedBy:     "manager@example.com",
	}
	require.NoError(t, svc.OnRequestCompleted(context.Background(), req))

	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.bodies[0], "completed")
	assert.Contains(t, sender.bodies[0], "Statements Chain")
	assert.Contains(t, sender.bodies[0], "manager@example.com")
}

func TestService_OnArtworkReviewed(t *testing.T) {
	sender := &senderMock{}
	svc := newTestService(sender)

	sub := store.ArtworkSubmission{
		Title:      "Summer Envelope",
		Status:     enums.ArtworkStatusRejected,
		ReviewedBy: "manager@example.com",
		Feedback:   "wrong bleed area",
	}
	require.NoError(t, svc.OnArtworkReviewed(context.Background(), sub))

	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.bodies[0], "Summer Envelope")
	assert.Contains(t, sender.bodies[0], "rejected")
	assert.Contains(t, sender.bodies[0], "wrong bleed area")
}

func TestService_OnJobOverdue(t *testing.T) {
	sender := &senderMock{}
	svc := newTestService(sender)

	job := store.Job{
		Reference:      "JOB-240601-0001",
		Title:          "Council Tax Bills",
		Status:         enums.JobStatusPending,
		ClientName:     "Northgate Council",
		CollectionDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ItemCount:      1200,
		BagCount:       4,
	}
	require.NoError(t, svc.OnJobOverdue(context.Background(), job))

	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.bodies[0], "JOB-240601-0001")
	assert.Contains(t, sender.bodies[0], "2024-06-01")
	assert.Contains(t, sender.dests[0], "overdue")
}

func TestService_sendRetries(t *testing.T) {
	sender := &senderMock{failures: 2}
	svc := newTestService(sender)

	err := svc.OnJobOverdue(context.Background(), store.Job{Reference: "JOB-240601-0001"})
	require.NoError(t, err, "transient failures retried")
	assert.Len(t, sender.bodies, 1)
}

func TestService_sendExhaustsRetries(t *testing.T) {
	sender := &senderMock{failures: 10}
	svc := newTestService(sender)

	err := svc.OnJobOverdue(context.Background(), store.Job{Reference: "JOB-240601-0001"})
	require.Error(t, err)
	assert.Empty(t, sender.bodies)
}
