// Package pipeline drives a processing run: discover new videos, work
// through the backlog, and publish articles.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"tubescribe/internal/article"
	"tubescribe/internal/cleanup"
	"tubescribe/internal/config"
	"tubescribe/internal/discover"
	"tubescribe/internal/ledger"
	"tubescribe/internal/queue"
	"tubescribe/internal/store"
	"tubescribe/internal/summarize"
	"tubescribe/internal/transcript"
	"tubescribe/internal/youtube"
)

// InfoFetcher fetches video metadata.
type InfoFetcher interface {
	VideoInfo(ctx context.Context, videoID string) (*youtube.VideoInfo, error)
}

// CaptionFetcher fetches video transcripts.
type CaptionFetcher interface {
	Fetch(ctx context.Context, videoID string) (*youtube.Transcript, error)
}

// Discoverer finds candidate videos on registered channels.
type Discoverer interface {
	FetchAll(daysWindow int) []discover.Candidate
}

// Options control a single processing run.
type Options struct {
	BatchSize      int
	RetryFailed    bool
	DaysWindow     int
	MinDurationSec int
	KeepTimestamps bool
	DryRun         bool
}

// Result summarizes what a run did.
type Result struct {
	Discovered int
	Enqueued   int
	Reconciled int
	Retried    int
	Processed  int
	Succeeded  int
	Skipped    int
	Failed     int
}

// Pipeline wires the stores and fetchers together for a run.
type Pipeline struct {
	cfg         *config.Config
	backlog     *queue.Backlog
	ledger      *ledger.Ledger
	transcripts *transcript.Store
	articles    *article.Store
	info        InfoFetcher
	captions    CaptionFetcher
	disc        Discoverer
	provider    summarize.Provider
	lockDir     string
	staleAfter  time.Duration
}

// New assembles a Pipeline from configuration, opening the backing
// stores under the data directory.
func New(cfg *config.Config) (*Pipeline, error) {
	dataDir := cfg.GetDataDir()

	led, err := ledger.Open(filepath.Join(dataDir, "state.json"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	backlog := queue.New(filepath.Join(dataDir, "backlog.json"), cfg.Queue.RetryCeiling, led)

	transcripts, err := transcript.NewStore(filepath.Join(dataDir, "transcripts"))
	if err != nil {
		return nil, err
	}
	articles, err := article.NewStore(filepath.Join(dataDir, "summaries"))
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:         cfg,
		backlog:     backlog,
		ledger:      led,
		transcripts: transcripts,
		articles:    articles,
		info:        youtube.NewClient(cfg.YouTube.APIKeyEnv),
		captions:    youtube.NewTranscriptClient(cfg.YouTube.Languages),
		disc:        discover.New(cfg.Channels),
		provider:    summarize.CreateProvider(cfg.Summarization),
		lockDir:     filepath.Join(dataDir, "run.lock"),
		staleAfter:  time.Duration(cfg.Queue.StaleAfterMinutes) * time.Minute,
	}, nil
}

// Backlog exposes the queue for inspection commands.
func (p *Pipeline) Backlog() *queue.Backlog { return p.backlog }

// Ledger exposes the processed-video ledger for inspection commands.
func (p *Pipeline) Ledger() *ledger.Ledger { return p.ledger }

// Run executes one processing pass. Interrupted work from earlier runs
// is requeued first, so a crash never strands an entry in processing.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	lock, err := store.Acquire(p.lockDir, p.staleAfter)
	if err != nil {
		return nil, fmt.Errorf("another run is active: %w", err)
	}
	defer lock.Release()

	res := &Result{}

	reconciled, err := p.backlog.ReconcileStale(p.staleAfter)
	if err != nil {
		return nil, err
	}
	res.Reconciled = reconciled
	if reconciled > 0 {
		log.Printf("Requeued %d interrupted entries", reconciled)
	}

	if opts.RetryFailed {
		retried, err := p.backlog.RetryFailed()
		if err != nil {
			return nil, err
		}
		res.Retried = retried
		if retried > 0 {
			log.Printf("Requeued %d failed entries for retry", retried)
		}
	}

	if err := p.discoverNew(opts, res); err != nil {
		return nil, err
	}

	if opts.DryRun {
		log.Println("Dry run, not processing the backlog")
		return res, nil
	}

	batch, err := p.backlog.DequeueBatch(opts.BatchSize)
	if err != nil {
		return nil, err
	}
	log.Printf("Processing %d of the backlog", len(batch))

	for _, entry := range batch {
		if ctx.Err() != nil {
			// requeue untouched work before bailing out
			if _, rerr := p.backlog.ReconcileStale(0); rerr != nil {
				log.Printf("Failed to requeue on shutdown: %v", rerr)
			}
			return res, ctx.Err()
		}

		res.Processed++
		switch err := p.processOne(ctx, entry, opts); {
		case err == nil:
			res.Succeeded++
		case errors.Is(err, errSkipped):
			res.Skipped++
		default:
			res.Failed++
			log.Printf("Failed %s: %v", entry.VideoID, err)
			if ferr := p.backlog.MarkFailed(entry.VideoID, err.Error()); ferr != nil {
				log.Printf("Failed to record failure for %s: %v", entry.VideoID, ferr)
			}
		}
	}

	return res, nil
}

func (p *Pipeline) discoverNew(opts Options, res *Result) error {
	if len(p.cfg.Channels) == 0 {
		return nil
	}
	days := opts.DaysWindow
	if days <= 0 {
		days = p.cfg.Discovery.DaysWindow
	}

	candidates := p.disc.FetchAll(days)
	res.Discovered = len(candidates)

	for _, c := range candidates {
		added, err := p.backlog.Enqueue(queue.Entry{
			VideoID:     c.VideoID,
			Title:       c.Title,
			Channel:     c.ChannelTitle,
			PublishedAt: c.PublishedAt,
			Lang:        c.Lang,
		})
		if err != nil {
			return err
		}
		if added {
			res.Enqueued++
		}
	}
	if res.Enqueued > 0 {
		log.Printf("Enqueued %d new videos", res.Enqueued)
	}
	return nil
}

// errSkipped marks entries dropped on purpose, like too-short videos.
var errSkipped = errors.New("skipped")

// processOne takes a single backlog entry through fetch, clean,
// summarize, and publish. The article file is written before the entry
// is marked done, so a crash in between repeats work instead of losing it.
func (p *Pipeline) processOne(ctx context.Context, entry queue.Entry, opts Options) error {
	videoID := entry.VideoID
	log.Printf("Processing %s: %s", videoID, entry.Title)

	if p.ledger.Has(videoID) {
		log.Printf("Already processed %s, dropping from backlog", videoID)
		if err := p.backlog.MarkDone(videoID); err != nil {
			return err
		}
		return errSkipped
	}

	info, err := p.info.VideoInfo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("video info: %w", err)
	}

	minDuration := opts.MinDurationSec
	if minDuration <= 0 {
		minDuration = p.cfg.Discovery.MinDurationMinutes * 60
	}
	if info.DurationSeconds < minDuration {
		log.Printf("Skipping %s: %ds is under the %ds minimum", videoID, info.DurationSeconds, minDuration)
		if err := p.backlog.MarkDone(videoID); err != nil {
			return err
		}
		return errSkipped
	}

	doc, err := p.fetchTranscript(ctx, videoID, info)
	if err != nil {
		return err
	}

	cleaned := cleanup.Clean(doc.Text(), opts.KeepTimestamps)
	if cleaned == "" {
		return fmt.Errorf("transcript for %s cleaned down to nothing", videoID)
	}
	if err := p.transcripts.SaveCleaned(videoID, cleaned); err != nil {
		return err
	}

	body, providerName, model, err := p.composeArticle(ctx, info, cleaned)
	if err != nil {
		return err
	}

	err = p.articles.Write(article.FrontMatter{
		Title:       info.Title,
		VideoID:     videoID,
		Channel:     info.Channel,
		PublishedAt: info.PublishedAt,
		Thumbnail:   info.Thumbnail,
		Provider:    providerName,
		Model:       model,
	}, body)
	if err != nil && !errors.Is(err, article.ErrExists) {
		return fmt.Errorf("write article: %w", err)
	}

	err = p.ledger.Add(videoID, ledger.Record{
		Title:    info.Title,
		Channel:  info.Channel,
		Provider: providerName,
		Model:    model,
	})
	if err != nil {
		return fmt.Errorf("record in ledger: %w", err)
	}

	if err := p.backlog.MarkDone(videoID); err != nil {
		return err
	}
	log.Printf("Published %s", videoID)
	return nil
}

// fetchTranscript loads a previously saved transcript or fetches a
// fresh one, persisting it and the description for later reruns.
func (p *Pipeline) fetchTranscript(ctx context.Context, videoID string, info *youtube.VideoInfo) (*transcript.Document, error) {
	if p.transcripts.HasDocument(videoID) {
		doc, err := p.transcripts.LoadDocument(videoID)
		if err == nil {
			log.Printf("Reusing saved transcript for %s", videoID)
			return doc, nil
		}
		log.Printf("Saved transcript for %s unreadable, refetching: %v", videoID, err)
	}

	tr, err := p.captions.Fetch(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}

	doc := &transcript.Document{
		VideoID:     videoID,
		Title:       info.Title,
		Channel:     info.Channel,
		PublishedAt: info.PublishedAt,
		Duration:    info.DurationSeconds,
		Thumbnail:   info.Thumbnail,
		Language:    tr.Language,
		Segments:    tr.Segments,
	}
	if err := p.transcripts.SaveDocument(doc); err != nil {
		return nil, err
	}
	if info.Description != "" {
		if err := p.transcripts.SaveDescription(videoID, info.Description); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// composeArticle produces the markdown body. Without a provider the
// article carries the cleaned transcript as-is.
func (p *Pipeline) composeArticle(ctx context.Context, info *youtube.VideoInfo, cleaned string) (body, providerName, model string, err error) {
	if p.provider == nil {
		return cleaned, "", "", nil
	}

	tmpl := p.cfg.GetPromptTemplate(p.cfg.Summarization.PromptTemplate)
	description := p.transcripts.LoadDescription(info.VideoID)
	system, user := summarize.BuildPrompt(tmpl, info.Title, cleaned, description)

	body, err = p.provider.Generate(ctx, system, user)
	if err != nil {
		return "", "", "", fmt.Errorf("summarize: %w", err)
	}
	return body, p.provider.Name(), p.provider.Model(), nil
}
