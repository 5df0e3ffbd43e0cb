package actions

import (
	"context"
	"errors"
	"testing"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/organizations"
	"selestial_backend/internal/timeline"
	"selestial_backend/internal/workflows"
	"selestial_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeCredentials struct {
	creds organizations.Credentials
	err   error
}

func (f *fakeCredentials) ResolveByID(ctx context.Context, orgID uuid.UUID) (organizations.Credentials, error) {
	return f.creds, f.err
}

type recordingAppender struct {
	events []timeline.Event
	err    error
}

func (r *recordingAppender) Append(ctx context.Context, e timeline.Event) (timeline.Event, error) {
	if r.err != nil {
		return timeline.Event{}, r.err
	}
	r.events = append(r.events, e)
	return e, nil
}

func (r *recordingAppender) byType(eventType string) []timeline.Event {
	var out []timeline.Event
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeCRM struct {
	tagCalls   int
	taskCalls  int
	stageCalls int
	lastTag    string
	lastTitle  string
	err        error
}

func (f *fakeCRM) MovePipelineStage(ctx context.Context, creds organizations.Credentials, ghlContactID, contactName, pipelineID, stageID string) error {
	f.stageCalls++
	return f.err
}

func (f *fakeCRM) AddTag(ctx context.Context, creds organizations.Credentials, ghlContactID, tag string) error {
	f.tagCalls++
	f.lastTag = tag
	return f.err
}

func (f *fakeCRM) CreateTask(ctx context.Context, creds organizations.Credentials, ghlContactID, title, description string, dueDate time.Time) error {
	f.taskCalls++
	f.lastTitle = title
	return f.err
}

type fakeSMS struct {
	calls    int
	lastTo   string
	lastText string
	err      error
}

func (f *fakeSMS) SendSMS(ctx context.Context, creds organizations.Credentials, toNumber, text string) error {
	f.calls++
	f.lastTo = toNumber
	f.lastText = text
	return f.err
}

type fakeMailer struct {
	calls int
	err   error
}

func (f *fakeMailer) SendAlert(ctx context.Context, toEmail, subject, body string) error {
	f.calls++
	return f.err
}

func fullCreds() organizations.Credentials {
	return organizations.Credentials{
		GHLAPIKey:         "ghl-key",
		GHLLocationID:     "loc-1",
		TelnyxAPIKey:      "tx-key",
		TelnyxPhoneNumber: "+15550001111",
		AlertEmail:        "ops@example.com",
	}
}

func testContact() contacts.Contact {
	return contacts.Contact{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		GHLContactID:   "ghl-abc",
		FirstName:      "Ada",
		LastName:       "Lovelace",
		Email:          "ada@example.com",
		Phone:          "+15551234567",
	}
}

func testWorkflow() workflows.Workflow {
	return workflows.Workflow{ID: uuid.New(), Name: "save the account"}
}

func newTestExecutor(creds *fakeCredentials, appender *recordingAppender, crm *fakeCRM, sms *fakeSMS, mailer AlertSender) *Executor {
	return NewExecutor(creds, appender, crm, sms, mailer, nil, logger.NewNop())
}

func TestExecuteAddTag(t *testing.T) {
	appender := &recordingAppender{}
	crm := &fakeCRM{}
	x := newTestExecutor(&fakeCredentials{creds: fullCreds()}, appender, crm, &fakeSMS{}, nil)

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionAddTag, Tag: "at-risk"}, testContact(), testWorkflow())

	if result.Status != workflows.ActionExecuted {
		t.Fatalf("expected executed, got %s (%s)", result.Status, result.Detail)
	}
	if crm.tagCalls != 1 || crm.lastTag != "at-risk" {
		t.Fatalf("expected one tag call with at-risk, got %d calls, tag %q", crm.tagCalls, crm.lastTag)
	}
	if got := len(appender.byType(timeline.TypeActionExecuted)); got != 1 {
		t.Fatalf("expected exactly one outcome event, got %d", got)
	}
}

func TestExecuteSMSSkipsWithoutPhone(t *testing.T) {
	appender := &recordingAppender{}
	sms := &fakeSMS{}
	x := newTestExecutor(&fakeCredentials{creds: fullCreds()}, appender, &fakeCRM{}, sms, nil)

	contact := testContact()
	contact.Phone = ""

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionSendSMS, Message: "Hi {{first_name}}"}, contact, testWorkflow())

	if result.Status != workflows.ActionSkipped {
		t.Fatalf("expected skipped, got %s", result.Status)
	}
	if sms.calls != 0 {
		t.Fatalf("expected no provider call, got %d", sms.calls)
	}
	// A skip is still an invocation and must leave exactly one outcome event.
	outcomes := appender.byType(timeline.TypeActionExecuted)
	if len(outcomes) != 1 {
		t.Fatalf("expected exactly one outcome event, got %d", len(outcomes))
	}
	if outcomes[0].Metadata["status"] != "skipped" {
		t.Fatalf("expected skipped status in metadata, got %v", outcomes[0].Metadata["status"])
	}
}

func TestExecuteSMSRendersTemplate(t *testing.T) {
	appender := &recordingAppender{}
	sms := &fakeSMS{}
	x := newTestExecutor(&fakeCredentials{creds: fullCreds()}, appender, &fakeCRM{}, sms, nil)

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionSendSMS, Message: "Hi {{first_name}}, check in?"}, testContact(), testWorkflow())

	if result.Status != workflows.ActionExecuted {
		t.Fatalf("expected executed, got %s (%s)", result.Status, result.Detail)
	}
	if sms.lastText != "Hi Ada, check in?" {
		t.Fatalf("expected rendered message, got %q", sms.lastText)
	}
	if sms.lastTo != "+15551234567" {
		t.Fatalf("expected contact phone, got %q", sms.lastTo)
	}
}

func TestExecuteGHLSkipsWithoutCRMLink(t *testing.T) {
	appender := &recordingAppender{}
	crm := &fakeCRM{}
	x := newTestExecutor(&fakeCredentials{creds: fullCreds()}, appender, crm, &fakeSMS{}, nil)

	contact := testContact()
	contact.GHLContactID = ""

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionMovePipelineStage, PipelineID: "p1", StageID: "s1"}, contact, testWorkflow())

	if result.Status != workflows.ActionSkipped {
		t.Fatalf("expected skipped, got %s", result.Status)
	}
	if crm.stageCalls != 0 {
		t.Fatalf("expected no provider call, got %d", crm.stageCalls)
	}
}

func TestExecuteProviderFailure(t *testing.T) {
	appender := &recordingAppender{}
	crm := &fakeCRM{err: errors.New("upstream 502")}
	x := newTestExecutor(&fakeCredentials{creds: fullCreds()}, appender, crm, &fakeSMS{}, nil)

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionAddTag, Tag: "x"}, testContact(), testWorkflow())

	if result.Status != workflows.ActionFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if crm.tagCalls != 1 {
		t.Fatalf("expected exactly one provider attempt, got %d", crm.tagCalls)
	}
	outcomes := appender.byType(timeline.TypeActionExecuted)
	if len(outcomes) != 1 {
		t.Fatalf("failure must still record one outcome event, got %d", len(outcomes))
	}
}

func TestExecuteInternalAlertWritesTimeline(t *testing.T) {
	appender := &recordingAppender{}
	mailer := &fakeMailer{}
	x := newTestExecutor(&fakeCredentials{creds: fullCreds()}, appender, &fakeCRM{}, &fakeSMS{}, mailer)

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionInternalAlert, Message: "{{first_name}} is slipping"}, testContact(), testWorkflow())

	if result.Status != workflows.ActionExecuted {
		t.Fatalf("expected executed, got %s (%s)", result.Status, result.Detail)
	}
	alerts := appender.byType(timeline.TypeWorkflowAlert)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert event, got %d", len(alerts))
	}
	if alerts[0].Description != "Ada is slipping" {
		t.Fatalf("expected rendered alert message, got %q", alerts[0].Description)
	}
	if mailer.calls != 1 {
		t.Fatalf("expected one alert email, got %d", mailer.calls)
	}
	if got := len(appender.byType(timeline.TypeActionExecuted)); got != 1 {
		t.Fatalf("expected one outcome event, got %d", got)
	}
}

func TestExecuteInternalAlertToleratesMailerFailure(t *testing.T) {
	appender := &recordingAppender{}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	x := newTestExecutor(&fakeCredentials{creds: fullCreds()}, appender, &fakeCRM{}, &fakeSMS{}, mailer)

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionInternalAlert, Message: "hello"}, testContact(), testWorkflow())

	if result.Status != workflows.ActionExecuted {
		t.Fatalf("mailer failure should not fail the action, got %s", result.Status)
	}
}

func TestExecuteCredentialResolutionFailure(t *testing.T) {
	appender := &recordingAppender{}
	x := newTestExecutor(&fakeCredentials{err: errors.New("org gone")}, appender, &fakeCRM{}, &fakeSMS{}, nil)

	result := x.Execute(context.Background(), workflows.ActionSpec{Type: workflows.ActionAddTag, Tag: "x"}, testContact(), testWorkflow())

	if result.Status != workflows.ActionFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if got := len(appender.byType(timeline.TypeActionExecuted)); got != 1 {
		t.Fatalf("expected one outcome event, got %d", got)
	}
}
