package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/gazette-watch/internal/discovery"
	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/history/memory"
	"github.com/JakeFAU/gazette-watch/internal/processor"
	"github.com/JakeFAU/gazette-watch/internal/report"
)

const (
	indexURL = "https://www.example.gov.br/dei/dorn3/"
	extraPDF = "https://www.example.gov.br/dei/dorn3/extra-0301.pdf"
	quietPDF = "https://www.example.gov.br/dei/dorn3/extra-0201.pdf"
	dailyPDF = "https://store.s3.amazonaws.com/2025/01/03/daily.pdf"
)

var ana = gazette.WatchedPerson{FullName: "Ana Maria Souza", RegistrationNumber: "1234567"}

type stubFetcher struct {
	bodies map[string]string
	calls  map[string]int
}

func (s *stubFetcher) Fetch(_ context.Context, url string, _ time.Duration) ([]byte, error) {
	s.calls[url]++
	body, ok := s.bodies[url]
	if !ok {
		return nil, errors.New("404")
	}
	return []byte(body), nil
}

// pageTable maps a document body to its page texts.
type pageTable map[string][]string

func (p pageTable) Pages(data []byte) ([]string, error) {
	pages, ok := p[string(data)]
	if !ok {
		return nil, errors.New("not a pdf")
	}
	return pages, nil
}

type stubInterceptor struct {
	url string
	err error
}

func (s stubInterceptor) Intercept(_ context.Context, _ string, match func(string) bool) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if !match(s.url) {
		return "", gazette.ErrNoCapture
	}
	return s.url + "?X-Amz-Signature=abc", nil
}

type recordingNotifier struct {
	msgs []gazette.Message
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, msg gazette.Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return "run-" + string(rune('0'+s.n)), nil
}

type failingStore struct {
	loadErr, saveErr error
}

func (f failingStore) Load(context.Context) (gazette.HistorySet, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return gazette.NewHistorySet(), nil
}

func (f failingStore) Save(context.Context, gazette.HistorySet) error { return f.saveErr }

type fixture struct {
	fetcher  *stubFetcher
	store    gazette.HistoryStore
	notifier *recordingNotifier
	ids      *seqIDs
	policy   gazette.RecordPolicy
	capture  stubInterceptor
}

func newFixture() *fixture {
	return &fixture{
		fetcher: &stubFetcher{
			bodies: map[string]string{
				indexURL: `<a href="extra-0301.pdf">Edição Extra 03/01</a>
<a href="extra-0201.pdf">Edição Extra 02/01</a>`,
				extraPDF: "extra",
				quietPDF: "quiet",
				dailyPDF: "daily",
			},
			calls: map[string]int{},
		},
		store:    memory.New(),
		notifier: &recordingNotifier{},
		ids:      &seqIDs{},
		policy:   gazette.RecordMatched,
		capture:  stubInterceptor{url: dailyPDF},
	}
}

var pages = pageTable{
	"extra": {"Portaria sem interesse", "Nomear ANA MARIA SOUZA, matrícula 1234567, para o cargo"},
	"quiet": {"Nada a declarar"},
	"daily": {"Expediente do dia"},
}

// controller builds a fresh pipeline, as each process invocation would.
func (f *fixture) controller(t *testing.T) *Controller {
	t.Helper()
	clock := fixedClock(time.Date(2025, 1, 3, 15, 0, 0, 0, time.UTC))
	proc := processor.New(f.fetcher, pages, nil, nil, processor.Config{Watchlist: []gazette.WatchedPerson{ana}}, nil)

	extra, err := discovery.NewExtraEditions(discovery.ExtraConfig{IndexURL: indexURL}, f.fetcher, proc, nil)
	require.NoError(t, err)
	daily, err := discovery.NewDailyEdition(discovery.DailyConfig{
		ViewerURLTemplate: "https://viewer/#/jornal?data={date}",
		StorageHost:       "store.s3.amazonaws.com",
	}, f.capture, clock, proc, nil)
	require.NoError(t, err)

	c, err := New(f.store, []gazette.Discoverer{extra, daily}, report.NewRenderer("", nil), f.notifier,
		clock, f.ids, Options{RecordPolicy: f.policy}, nil)
	require.NoError(t, err)
	return c
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture()
	summary, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 3, summary.Documents)
	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 1, summary.Findings)
	assert.True(t, summary.Notified)
	assert.Equal(t, []string{extraPDF}, summary.Recorded)

	require.Len(t, f.notifier.msgs, 1)
	msg := f.notifier.msgs[0]
	assert.Equal(t, report.DefaultSubject, msg.Subject)
	require.Len(t, msg.Report.Groups, 1)
	finding := msg.Report.Groups[0].Findings[0]
	assert.Equal(t, 2, finding.Page)
	assert.Equal(t, []string{gazette.LabelName, gazette.LabelRegistration}, finding.Labels())
	assert.Equal(t, "Edição Extra 03/01", finding.Document.Title)
	assert.Contains(t, msg.HTMLBody, extraPDF)

	set, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{extraPDF}, set.Sorted())
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)

	second, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, second.Findings)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Recorded)
	assert.Len(t, f.notifier.msgs, 1)
	assert.Equal(t, 1, f.fetcher.calls[extraPDF])
	// With the matched policy, documents without findings are fetched again.
	assert.Equal(t, 2, f.fetcher.calls[quietPDF])
	assert.Equal(t, 1, f.store.(*memory.Store).Saves())
}

func TestRunScannedPolicyRecordsEveryParsedDocument(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.policy = gazette.RecordScanned
	f.fetcher.bodies[quietPDF] = "garbage"

	summary, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.ElementsMatch(t, []string{extraPDF, dailyPDF}, summary.Recorded)

	second, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 1, f.fetcher.calls[dailyPDF])
	assert.Equal(t, 2, f.fetcher.calls[quietPDF])
}

func TestRunNoFindingsIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.fetcher.bodies[extraPDF] = "quiet"

	summary, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Findings)
	assert.Empty(t, f.notifier.msgs)
	assert.Empty(t, summary.Recorded)
	assert.Zero(t, f.store.(*memory.Store).Saves())
}

func TestRunNotifierFailureStillCommitsHistory(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.notifier.err = errors.New("smtp down")

	summary, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Notified)
	require.Error(t, summary.NotifyErr)
	assert.Equal(t, []string{extraPDF}, summary.Recorded)
}

func TestRunDiscoveryOutage(t *testing.T) {
	t.Parallel()

	f := newFixture()
	delete(f.fetcher.bodies, indexURL)
	f.capture = stubInterceptor{err: errors.New("chrome missing")}

	summary, err := f.controller(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.DiscoveryFailures)
	assert.Zero(t, summary.Documents)

	c := f.controller(t)
	c.opts.FailOnDiscoveryOutage = true
	_, err = c.Run(context.Background())
	require.ErrorIs(t, err, ErrDiscoveryOutage)
}

func TestRunPartialDiscoveryFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.capture = stubInterceptor{err: errors.New("chrome missing")}

	c := f.controller(t)
	c.opts.FailOnDiscoveryOutage = true
	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DiscoveryFailures)
	assert.Equal(t, 1, summary.Findings)
}

func TestRunHistoryErrors(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.store = failingStore{loadErr: errors.New("disk gone")}
	_, err := f.controller(t).Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.fetcher.calls[indexURL])

	f = newFixture()
	f.store = failingStore{saveErr: errors.New("read-only")}
	_, err = f.controller(t).Run(context.Background())
	require.Error(t, err)
	assert.Len(t, f.notifier.msgs, 1)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil, report.NewRenderer("", nil), nil, fixedClock{}, &seqIDs{}, Options{}, nil)
	require.Error(t, err)

	_, err = New(memory.New(), nil, report.NewRenderer("", nil), nil, fixedClock{}, &seqIDs{},
		Options{RecordPolicy: "everything"}, nil)
	require.Error(t, err)
}

func TestRunLogsMissingCaptureAsWarning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{"nothing published", fmt.Errorf("wait: %w", gazette.ErrNoCapture), zapcore.WarnLevel, "no document published"},
		{"browser failure", errors.New("chrome missing"), zapcore.ErrorLevel, "discovery failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			f.capture = stubInterceptor{err: tt.err}
			core, logs := observer.New(zapcore.DebugLevel)
			c := f.controller(t)
			c.logger = zap.New(core)

			summary, err := c.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, summary.DiscoveryFailures)

			entries := logs.FilterField(zap.String("source", gazette.SourceDaily)).FilterMessage(tt.wantMsg).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
		})
	}
}
