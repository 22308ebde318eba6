// Package notify delivers job events and digests to email, slack, telegram and webhook destinations.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web/enums"
)

//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// Notifier is a single destination type, implemented by go-pkgz/notify senders
type Notifier interface {
	fmt.Stringer
	Schema() string
	Send(ctx context.Context, destination, text string) error
}

// Params defines which events are reported and how messages are made
type Params struct {
	OnCreated      bool
	OnUpdated      bool
	OnDeleted      bool
	EventTemplate  string // path to custom html template for events, optional
	DigestTemplate string // path to custom html template for digest, optional
	SendTimeout    time.Duration
	DashboardURL   string // link added to messages, optional
}

// SendersParams for all supported destinations, each destination enabled if its recipients set
type SendersParams struct {
	SMTPHost     string
	SMTPPort     int
	SMTPTLS      bool
	SMTPStartTLS bool
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	ToEmails     []string

	SlackToken    string
	SlackChannels []string

	TelegramToken string
	TelegramChats []string

	WebhookURLs []string

	Timeout time.Duration
}

// Service sends notifications to all configured destinations
type Service struct {
	Params
	destinations []Notifier
	fromEmail    string
	toEmail      []string
	slackChans   []string
	telegramChat []string
	webhookURLs  []string
	hostname     string
	wg           sync.WaitGroup
}

// NewService makes notification service. Returns nil if no destinations configured.
func NewService(p Params, sp SendersParams) *Service {
	res := &Service{Params: p, fromEmail: sp.FromEmail, toEmail: sp.ToEmails, slackChans: sp.SlackChannels,
		telegramChat: sp.TelegramChats, webhookURLs: sp.WebhookURLs}
	if res.SendTimeout == 0 {
		res.SendTimeout = 30 * time.Second
	}
	res.hostname, _ = os.Hostname()

	if len(sp.ToEmails) > 0 {
		res.destinations = append(res.destinations, notify.NewEmail(notify.SMTPParams{
			Host:        sp.SMTPHost,
			Port:        sp.SMTPPort,
			TLS:         sp.SMTPTLS,
			StartTLS:    sp.SMTPStartTLS,
			ContentType: "text/html",
			Username:    sp.SMTPUsername,
			Password:    sp.SMTPPassword,
			TimeOut:     sp.Timeout,
		}))
	}
	if len(sp.SlackChannels) > 0 && sp.SlackToken != "" {
		res.destinations = append(res.destinations, notify.NewSlack(sp.SlackToken))
	}
	if len(sp.TelegramChats) > 0 && sp.TelegramToken != "" {
		tg, err := notify.NewTelegram(notify.TelegramParams{Token: sp.TelegramToken, Timeout: sp.Timeout})
		if err != nil {
			log.Printf("[WARN] telegram notifications disabled, %v", err)
		} else {
			res.destinations = append(res.destinations, tg)
		}
	}
	if len(sp.WebhookURLs) > 0 {
		res.destinations = append(res.destinations, notify.NewWebhook(notify.WebhookParams{Timeout: sp.Timeout}))
	}

	if len(res.destinations) == 0 {
		return nil
	}
	log.Printf("[INFO] notifications enabled: %s", res)
	return res
}

// String lists enabled destinations
func (s *Service) String() string {
	names := make([]string, 0, len(s.destinations))
	for _, d := range s.destinations {
		names = append(names, d.Schema())
	}
	return strings.Join(names, ", ")
}

// OnJobEvent sends event notification in background if enabled for the event type.
// Nil service is a valid no-op.
func (s *Service) OnJobEvent(ev tracker.Event) {
	if s == nil || !s.enabled(ev.Type) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.SendTimeout)
		defer cancel()

		msg, err := s.MakeEventHTML(ev)
		if err != nil {
			log.Printf("[WARN] can't make notification for job %s, %v", ev.Job.ID, err)
			return
		}
		if err := s.send(ctx, eventSubject(ev), msg, eventText(ev)); err != nil {
			log.Printf("[WARN] can't send notification for job %s, %v", ev.Job.ID, err)
		}
	}()
}

// Wait blocks until all background notifications are sent
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// SendDigest sends summary of the given jobs
func (s *Service) SendDigest(ctx context.Context, jobs []backend.Job) error {
	if s == nil {
		return nil
	}
	stats := tracker.Summarize(jobs)
	msg, err := s.MakeDigestHTML(jobs)
	if err != nil {
		return fmt.Errorf("can't make digest: %w", err)
	}
	subj := fmt.Sprintf("Job applications digest: %d open, %d closed", stats.Open, stats.Closed)
	text := fmt.Sprintf("%s, %d total", subj, stats.Total)
	for _, j := range tracker.Filter(jobs, enums.FilterModeOpen, "") {
		text += fmt.Sprintf("\n- %s at %s (%s)", j.Position, j.Company, j.Status)
	}
	return s.send(ctx, subj, msg, text)
}

// Send html message to email destinations and plain text to the rest
func (s *Service) Send(ctx context.Context, subj, text string) error {
	return s.send(ctx, subj, text, text)
}

func (s *Service) send(ctx context.Context, subj, html, text string) error {
	var errs []error
	for _, dest := range s.destinations {
		switch dest.Schema() {
		case "mailto":
			to := fmt.Sprintf("mailto:%s?from=%s&subject=%s", strings.Join(s.toEmail, ","), s.fromEmail, url.QueryEscape(subj))
			errs = append(errs, dest.Send(ctx, to, html))
		case "slack":
			for _, ch := range s.slackChans {
				errs = append(errs, dest.Send(ctx, "slack:"+ch+"?title="+url.QueryEscape(subj), text))
			}
		case "telegram":
			for _, ch := range s.telegramChat {
				errs = append(errs, dest.Send(ctx, "telegram:"+ch, subj+"\n"+text))
			}
		default: // webhook
			for _, u := range s.webhookURLs {
				errs = append(errs, dest.Send(ctx, u, text))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Service) enabled(t enums.EventType) bool {
	switch t {
	case enums.EventTypeCreated:
		return s.OnCreated
	case enums.EventTypeUpdated:
		return s.OnUpdated
	case enums.EventTypeDeleted:
		return s.OnDeleted
	}
	return false
}

// MakeEventHTML creates html message for the job event
func (s *Service) MakeEventHTML(ev tracker.Event) (string, error) {
	data := struct {
		Type      string
		Job       backend.Job
		Changes   []string
		TS        time.Time
		Host      string
		Dashboard string
	}{
		Type:      ev.Type.String(),
		Job:       ev.Job,
		Changes:   ev.Changes(),
		TS:        ev.At,
		Host:      s.hostname,
		Dashboard: s.DashboardURL,
	}
	return s.execute(s.EventTemplate, defaultEventTemplate, data)
}

// MakeDigestHTML creates html digest of the jobs
func (s *Service) MakeDigestHTML(jobs []backend.Job) (string, error) {
	data := struct {
		Stats     tracker.Stats
		Open      []backend.Job
		TS        time.Time
		Host      string
		Dashboard string
	}{
		Stats:     tracker.Summarize(jobs),
		Open:      tracker.Filter(jobs, enums.FilterModeOpen, ""),
		TS:        time.Now(),
		Host:      s.hostname,
		Dashboard: s.DashboardURL,
	}
	return s.execute(s.DigestTemplate, defaultDigestTemplate, data)
}

// execute renders custom template file if set and valid, falls back to the default one
func (s *Service) execute(file, fallback string, data any) (string, error) {
	tmpl := fallback
	if file != "" {
		body, err := os.ReadFile(file) //nolint:gosec // template path from trusted config
		if err != nil {
			log.Printf("[WARN] can't read template %s, using default, %v", file, err)
		} else {
			tmpl = string(body)
		}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil && tmpl != fallback {
		log.Printf("[WARN] can't parse template %s, using default, %v", file, err)
		t, err = template.New("msg").Parse(fallback)
	}
	if err != nil {
		return "", fmt.Errorf("can't parse message template: %w", err)
	}
	buf := bytes.Buffer{}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

func eventSubject(ev tracker.Event) string {
	return fmt.Sprintf("Job %s: %s at %s", ev.Type, ev.Job.Position, ev.Job.Company)
}

func eventText(ev tracker.Event) string {
	res := fmt.Sprintf("%s, salary %s, status %s", eventSubject(ev), ev.Job.Salary, ev.Job.Status)
	if ch := ev.Changes(); len(ch) > 0 {
		res += "\n" + strings.Join(ch, "\n")
	}
	return res
}
