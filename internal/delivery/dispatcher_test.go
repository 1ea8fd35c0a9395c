package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"phishguard-backend/internal/models"
)

// flakyTransport fails every odd-indexed call.
type flakyTransport struct {
	mu    sync.Mutex
	calls int
}

func (t *flakyTransport) Channel() models.Channel { return models.ChannelEmail }

func (t *flakyTransport) Send(ctx context.Context, recipient models.Recipient, artifact *models.ContentArtifact) error {
	t.mu.Lock()
	n := t.calls
	t.calls++
	t.mu.Unlock()

	if n%2 == 1 {
		return fmt.Errorf("%s: induced failure", ErrCategoryTransportDown)
	}
	return nil
}

func emailArtifact() *models.ContentArtifact {
	return &models.ContentArtifact{
		Subject:   "Account notice",
		Body:      "Please review your account.",
		Channel:   models.ChannelEmail,
		Urgency:   models.UrgencyMedium,
		Simulated: true,
		Provider:  "simulated",
	}
}

func recipients(n int) []models.Recipient {
	out := make([]models.Recipient, n)
	for i := range out {
		out[i] = models.Recipient{Name: fmt.Sprintf("User %d", i), Address: fmt.Sprintf("user%d@example.com", i)}
	}
	return out
}

func TestSendBulk_PartialFailureAccounting(t *testing.T) {
	for _, n := range []int{1, 2, 5, 10, 17} {
		dispatcher := NewDispatcher(3, &flakyTransport{})

		bulk := dispatcher.SendBulk(context.Background(), recipients(n), emailArtifact())

		if bulk.Successful+bulk.Failed != n {
			t.Errorf("n=%d: successful+failed must equal recipient count, got %d+%d",
				n, bulk.Successful, bulk.Failed)
		}
		if expectedFailed := n / 2; bulk.Failed != expectedFailed {
			t.Errorf("n=%d: expected %d failures from odd-indexed transport, got %d",
				n, expectedFailed, bulk.Failed)
		}
		if len(bulk.Results) != n {
			t.Errorf("n=%d: expected one result per recipient, got %d", n, len(bulk.Results))
		}
	}
}

func TestSendBulk_EveryRecipientGetsOneResult(t *testing.T) {
	dispatcher := NewDispatcher(4, &flakyTransport{})
	targets := recipients(12)

	bulk := dispatcher.SendBulk(context.Background(), targets, emailArtifact())

	seen := make(map[string]bool)
	for _, result := range bulk.Results {
		if seen[result.Recipient.Address] {
			t.Errorf("Recipient %s got more than one result", result.Recipient.Address)
		}
		seen[result.Recipient.Address] = true
	}
	for _, target := range targets {
		if !seen[target.Address] {
			t.Errorf("Recipient %s got no result", target.Address)
		}
	}
}

func TestSendSingle_UnsupportedChannel(t *testing.T) {
	dispatcher := NewDispatcher(1, &flakyTransport{})
	artifact := emailArtifact()
	artifact.Channel = models.ChannelSMS

	result := dispatcher.SendSingle(context.Background(), models.Recipient{Address: "+15550001111"}, artifact)
	if result.OK {
		t.Fatal("Send on a channel with no transport must fail")
	}
	if !strings.HasPrefix(result.Error, ErrCategoryUnsupported) {
		t.Errorf("Expected unsupported-channel category, got %q", result.Error)
	}
}

func TestSendSingle_FailureRecordedNotRaised(t *testing.T) {
	transport := &flakyTransport{}
	dispatcher := NewDispatcher(1, transport)

	first := dispatcher.SendSingle(context.Background(), recipients(1)[0], emailArtifact())
	if !first.OK {
		t.Fatalf("First send should succeed, got %q", first.Error)
	}

	second := dispatcher.SendSingle(context.Background(), recipients(1)[0], emailArtifact())
	if second.OK {
		t.Fatal("Second send should fail")
	}
	if !strings.HasPrefix(second.Error, ErrCategoryTransportDown) {
		t.Errorf("Expected categorized transport error, got %q", second.Error)
	}
}

func TestEmailTransport_RejectsInvalidAddress(t *testing.T) {
	transport := NewEmailTransport("", "", "", "", "trainer@example.com")

	err := transport.Send(context.Background(), models.Recipient{Address: "not-an-address"}, emailArtifact())
	if err == nil || !strings.HasPrefix(err.Error(), ErrCategoryInvalidAddress) {
		t.Fatalf("Expected invalid-address category, got %v", err)
	}
}

func TestEmailTransport_DevModeSendsNothing(t *testing.T) {
	transport := NewEmailTransport("", "", "", "", "trainer@example.com")

	if err := transport.Send(context.Background(), models.Recipient{Address: "user@example.com"}, emailArtifact()); err != nil {
		t.Fatalf("Dev mode send must succeed: %v", err)
	}
}

func TestSMSTransport_AddressValidation(t *testing.T) {
	transport := NewSMSTransport("", "")
	artifact := emailArtifact()
	artifact.Channel = models.ChannelSMS

	cases := []struct {
		address string
		ok      bool
	}{
		{"+15550001111", true},
		{"15550001111", true},
		{"555-000-1111", false},
		{"user@example.com", false},
		{"", false},
		{"+123", false},
	}

	for _, tc := range cases {
		err := transport.Send(context.Background(), models.Recipient{Address: tc.address}, artifact)
		if tc.ok && err != nil {
			t.Errorf("Address %q should be accepted, got %v", tc.address, err)
		}
		if !tc.ok && (err == nil || !strings.HasPrefix(err.Error(), ErrCategoryInvalidAddress)) {
			t.Errorf("Address %q should be rejected as invalid, got %v", tc.address, err)
		}
	}
}
