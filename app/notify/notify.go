// Package notify delivers workflow emails: identifier-request submissions
// and completions, artwork review decisions and overdue job reminders.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/pkg/errors"

	"github.com/postbureau/dispatch/app/store"
)

// Sender defines the delivery subset of go-pkgz/notify used by the service
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// Params holds SMTP and retry settings for the notification service
type Params struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	TimeOut  time.Duration

	From string
	To   []string

	RetryAttempts int
	RetryDuration time.Duration
	RetryFactor   float64
}

// Service sends workflow notifications, every send retried with backoff.
// A nil *Service is valid and skips delivery, callers don't need to guard.
type Service struct {
	Sender
	params Params
	rpt    *repeater.Repeater
}

// New creates a notification service, nil if no SMTP host configured
func New(p Params) *Service {
	if p.Host == "" || len(p.To) == 0 {
		return nil
	}
	if p.RetryAttempts <= 0 {
		p.RetryAttempts = 1
	}
	if p.RetryDuration <= 0 {
		p.RetryDuration = time.Second
	}
	if p.RetryFactor <= 0 {
		p.RetryFactor = 3
	}

	sender := notify.NewEmail(notify.SMTPParams{
		Host:     p.Host,
		Port:     p.Port,
		TLS:      p.TLS,
		Username: p.Username,
		Password: p.Password,
		TimeOut:  p.TimeOut,
	})

	rpt := repeater.New(&strategy.Backoff{
		Repeats:  p.RetryAttempts,
		Duration: p.RetryDuration,
		Factor:   p.RetryFactor,
		Jitter:   true,
	})
	return &Service{Sender: sender, params: p, rpt: rpt}
}

// OnRequestSubmitted notifies about a new UCID/SCID request
func (s *Service) OnRequestSubmitted(ctx context.Context, req store.UCIDRequest) error {
	if s == nil {
		return nil
	}
	subj := fmt.Sprintf("New %s request from %s", strings.ToUpper(req.Type.String()), req.ClientName)
	body, err := requestHTML("submitted", req)
	if err != nil {
		return err
	}
	return s.send(ctx, subj, body)
}

// OnRequestCompleted notifies that a pending request is done
func (s *Service) OnRequestCompleted(ctx context.Context, req store.UCIDRequest) error {
	if s == nil {
		return nil
	}
	subj := fmt.Sprintf("%s request for %s completed", strings.ToUpper(req.Type.String()), req.ClientName)
	body, err := requestHTML("completed", req)
	if err != nil {
		return err
	}
	return s.send(ctx, subj, body)
}

// OnArtworkReviewed notifies about an approve/reject decision
func (s *Service) OnArtworkReviewed(ctx context.Context, sub store.ArtworkSubmission) error {
	if s == nil {
		return nil
	}
	subj := fmt.Sprintf("Artwork %q %s", sub.Title, sub.Status)
	body, err := artworkHTML(sub)
	if err != nil {
		return err
	}
	return s.send(ctx, subj, body)
}

// OnJobOverdue notifies about a job past its collection date
func (s *Service) OnJobOverdue(ctx context.Context, job store.Job) error {
	if s == nil {
		return nil
	}
	subj := fmt.Sprintf("Job %s overdue for collection", job.Reference)
	body, err := overdueHTML(job)
	if err != nil {
		return err
	}
	return s.send(ctx, subj, body)
}

// send delivers one message to all configured recipients with retries
func (s *Service) send(ctx context.Context, subj, html string) error {
	dest := fmt.Sprintf("mailto:%s?subject=%s", strings.Join(s.params.To, ","), url.QueryEscape(subj))
	if s.params.From != "" {
		dest += "&from=" + url.QueryEscape(s.params.From)
	}

	log.Printf("[DEBUG] send %q to %+v", subj, s.params.To)
	err := s.rpt.Do(ctx, func() error { return s.Sender.Send(ctx, dest, html) })
	if err != nil {
		return errors.Wrapf(err, "failed to send %q", subj)
	}
	return nil
}

var requestTmpl = template.Must(template.New("request").Parse(`<!DOCTYPE html>
<html>
	<body style="font-family: Arial; font-size: 1.0em;">
		<p>Identifier request <span style="font-weight: 900;">{{.Action}}</span> at {{.TS.Format "2006-01-02T15:04:05Z07:00"}}</p>
		<ul>
			<li>Type: {{.Req.Type}}</li>
			<li>Client: {{.Req.ClientName}}</li>
			<li>Requestor: {{.Req.RequestorEmail}}</li>
			{{- if .Req.CollectionPoint}}<li>Collection point: {{.Req.CollectionPoint}}</li>{{end}}
			{{- if .Req.SupplyChainName}}<li>Supply chain: {{.Req.SupplyChainName}}</li>{{end}}
			{{- if .Req.CompletedBy}}<li>Completed by: {{.Req.CompletedBy}}</li>{{end}}
		</ul>
		{{- if .Req.Comments}}<pre>{{.Req.Comments}}</pre>{{end}}
	</body>
</html>
`))

func requestHTML(action string, req store.UCIDRequest) (string, error) {
	data := struct {
		Action string
		Req    store.UCIDRequest
		TS     time.Time
	}{Action: action, Req: req, TS: time.Now()}

	buf := bytes.Buffer{}
	if err := requestTmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to execute request template")
	}
	return buf.String(), nil
}

var artworkTmpl = template.Must(template.New("artwork").Parse(`<!DOCTYPE html>
<html>
	<body style="font-family: Arial; font-size: 1.0em;">
		<p>Artwork <span style="font-weight: 900;">{{.Sub.Title}}</span> was {{.Sub.Status}} by {{.Sub.ReviewedBy}}</p>
		{{- if .Sub.Feedback}}<pre>{{.Sub.Feedback}}</pre>{{end}}
	</body>
</html>
`))

func artworkHTML(sub store.ArtworkSubmission) (string, error) {
	data := struct{ Sub store.ArtworkSubmission }{Sub: sub}
	buf := bytes.Buffer{}
	if err := artworkTmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to execute artwork template")
	}
	return buf.String(), nil
}

var overdueTmpl = template.Must(template.New("overdue").Parse(`<!DOCTYPE html>
<html>
	<body style="font-family: Arial; font-size: 1.0em;">
		<p>Job <span style="font-weight: 900;">{{.Job.Reference}}</span> ({{.Job.Title}}) is past its collection date {{.Job.CollectionDate.Format "2006-01-02"}}</p>
		<ul>
			<li>Status: {{.Job.Status}}</li>
			{{- if .Job.ClientName}}<li>Client: {{.Job.ClientName}}</li>{{end}}
			<li>Items: {{.Job.ItemCount}}, bags: {{.Job.BagCount}}</li>
		</ul>
	</body>
</html>
`))

func overdueHTML(job store.Job) (string, error) {
	data := struct{ Job store.Job }{Job: job}
	buf := bytes.Buffer{}
	if err := overdueTmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to execute overdue template")
	}
	return buf.String(), nil
}
