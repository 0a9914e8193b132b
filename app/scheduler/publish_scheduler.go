// Package scheduler runs the batch publishing loop: it selects due ads,
// requests audience segmentation, maps targeting, dispatches the enabled
// platform adapters, and reconciles a single ad-level status per run.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/openpromo/hermes/app/services"
	businessflow "github.com/openpromo/hermes/business_flow"
	"github.com/openpromo/hermes/config"
	"github.com/openpromo/hermes/models"
	"github.com/openpromo/hermes/repository"
	"github.com/openpromo/hermes/utils"
)

// PublishScheduler periodically selects ads that are due and publishes them
// to every platform they are enabled for. Ads are processed sequentially
// within a run; failures never cross an ad boundary or a platform boundary.
type PublishScheduler struct {
	adRepo   repository.AdRepository
	connRepo repository.PlatformConnectionRepository
	runRepo  repository.PublishRunRepository

	segClient *services.SegmentationClient
	registry  *services.PublisherRegistry
	clusters  *ClusterTable

	validate      *validator.Validate
	logger        *log.Logger
	cfg           config.SchedulerConfig
	credentialKey []byte

	// runMu serializes runs: the ticker loop and the manual trigger endpoint
	// share this scheduler, and overlapping runs could select the same
	// scheduled ad before either marks it processing.
	runMu sync.Mutex

	logCloser io.Closer
}

func NewPublishScheduler(
	adRepo repository.AdRepository,
	connRepo repository.PlatformConnectionRepository,
	runRepo repository.PublishRunRepository,
	segClient *services.SegmentationClient,
	registry *services.PublisherRegistry,
	clusters *ClusterTable,
	cfg config.SchedulerConfig,
	credentialKey []byte,
) *PublishScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LeaseWindow <= 0 {
		cfg.LeaseWindow = 15 * time.Minute
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 2 * time.Minute
	}

	s := &PublishScheduler{
		adRepo:        adRepo,
		connRepo:      connRepo,
		runRepo:       runRepo,
		segClient:     segClient,
		registry:      registry,
		clusters:      clusters,
		validate:      validator.New(),
		cfg:           cfg,
		credentialKey: credentialKey,
	}
	s.initLogger(cfg.LogFilePath)

	return s
}

// initLogger configures a logger that writes to stdout and a rotating file
func (s *PublishScheduler) initLogger(path string) {
	if path == "" {
		s.logger = log.New(os.Stdout, "publisher ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	s.logCloser = lj
	mw := io.MultiWriter(os.Stdout, lj)
	s.logger = log.New(mw, "publisher ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Close releases the rotating log file, if one was configured
func (s *PublishScheduler) Close() error {
	if s.logCloser != nil {
		return s.logCloser.Close()
	}
	return nil
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *PublishScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Printf("publisher: run failed: %v", err)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.logger.Printf("publisher: run failed: %v", err)
				}
			}
		}
	}()

	return cancel
}

// RunOnce executes one batch publishing run and returns its persisted
// summary. Runs are mutually exclusive: a manual trigger arriving while the
// ticker run is in flight waits for it to finish rather than selecting the
// same ads. A selector failure is fatal to the run: zero ads are processed
// and the error is recorded on the run row. Everything after selection is
// isolated per ad.
func (s *PublishScheduler) RunOnce(ctx context.Context) (*models.PublishRun, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := utils.UTCNow()

	run := &models.PublishRun{StartedAt: started}
	if err := s.runRepo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("create publish run: %w", err)
	}

	// Sweep ads stuck in processing by a previous crash back to scheduled
	// so this or a later run can retry them.
	reclaimed, err := s.adRepo.ReclaimStuckProcessing(ctx, started.Add(-s.cfg.LeaseWindow))
	if err != nil {
		s.logger.Printf("publisher: reclaim stuck ads failed: %v", err)
	} else if reclaimed > 0 {
		s.logger.Printf("publisher: reclaimed %d ads stuck in processing", reclaimed)
		adsReclaimedTotal.Add(float64(reclaimed))
		run.AdsReclaimed = int(reclaimed)
	}

	ads, err := s.adRepo.ListDue(ctx, started, s.cfg.BatchLimit)
	if err != nil {
		msg := err.Error()
		run.SelectorError = &msg
		s.finishRun(ctx, run, started)
		return run, fmt.Errorf("list due ads: %w", err)
	}
	if len(ads) == 0 {
		s.finishRun(ctx, run, started)
		return run, nil
	}
	s.logger.Printf("publisher: %d ads due for publishing", len(ads))

	outcomes := make([]models.AdOutcome, 0, len(ads))
	for _, ad := range ads {
		outcome := s.processAd(ctx, ad)
		outcomes = append(outcomes, outcome)

		adsProcessedTotal.WithLabelValues(string(outcome.Status)).Inc()
		switch outcome.Status {
		case models.AdStatusLive:
			run.AdsLive++
		case models.AdStatusPartiallyLive:
			run.AdsPartial++
		}
	}

	run.AdsAttempted = len(ads)
	if bs, err := json.Marshal(outcomes); err == nil {
		run.Outcomes = bs
	}
	s.finishRun(ctx, run, started)

	s.logger.Printf("publisher: run %s finished attempted=%d live=%d partial=%d",
		run.UUID, run.AdsAttempted, run.AdsLive, run.AdsPartial)
	return run, nil
}

func (s *PublishScheduler) finishRun(ctx context.Context, run *models.PublishRun, started time.Time) {
	run.FinishedAt = utils.UTCNowPtr()
	if err := s.runRepo.Update(ctx, run); err != nil {
		s.logger.Printf("publisher: persist run summary failed: %v", err)
	}
	runDuration.Observe(time.Since(started).Seconds())
}

// processAd runs the full pipeline for one ad. Every fault escaping the
// per-platform isolation is caught here: the ad is marked error_processing
// and the batch continues with the next ad.
func (s *PublishScheduler) processAd(ctx context.Context, ad *models.Ad) (outcome models.AdOutcome) {
	outcome = models.AdOutcome{
		AdID:   ad.ID,
		AdUUID: ad.UUID.String(),
		Title:  ad.Title,
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("publisher: panic processing ad id=%d: %v", ad.ID, r)
			outcome.Status = models.AdStatusErrorProcessing
			outcome.Note = fmt.Sprintf("panic: %v", r)
			s.markError(ctx, ad.ID)
		}
	}()

	if err := s.validate.Struct(ad); err != nil {
		s.logger.Printf("publisher: ad id=%d failed validation: %v", ad.ID, err)
		outcome.Status = models.AdStatusErrorProcessing
		outcome.Note = err.Error()
		s.markError(ctx, ad.ID)
		return outcome
	}

	if err := s.adRepo.UpdateStatus(ctx, ad.ID, models.AdStatusProcessing); err != nil {
		s.logger.Printf("publisher: mark processing failed for ad id=%d: %v", ad.ID, err)
		outcome.Status = models.AdStatusErrorProcessing
		outcome.Note = err.Error()
		return outcome
	}

	// Segmentation: any failure is downgraded to "no result" and ends the
	// ad's run without platform attempts.
	seg := s.requestSegmentation(ctx, ad)
	if seg == nil {
		outcome.Status = models.AdStatusSegmentationFailed
		if err := s.adRepo.UpdateStatus(ctx, ad.ID, models.AdStatusSegmentationFailed); err != nil {
			s.logger.Printf("publisher: persist segmentation_failed for ad id=%d: %v", ad.ID, err)
			outcome.Status = models.AdStatusErrorProcessing
			outcome.Note = err.Error()
		}
		return outcome
	}

	targeting := MapTargeting(seg.Signals, seg.Confidence)

	// Persist segmentation immediately so the result survives even when
	// platform publishing fails later. Columns are overwritten wholesale.
	if err := s.adRepo.UpdateSegmentation(ctx, ad.ID, repository.SegmentationOutcome{
		Signals:            seg.Signals,
		ClusterID:          seg.ClusterID,
		ClusterConfidence:  seg.Confidence,
		ClusterProfileName: s.clusterName(seg.ClusterID),
		Targeting:          &targeting,
		SegmentedAt:        utils.UTCNow(),
	}); err != nil {
		s.logger.Printf("publisher: persist segmentation for ad id=%d failed: %v", ad.ID, err)
		outcome.Status = models.AdStatusErrorProcessing
		outcome.Note = err.Error()
		s.markError(ctx, ad.ID)
		return outcome
	}

	platforms := ad.EnabledPlatforms()
	var identifiers []repository.PlatformIdentifiers
	succeeded := 0
	for _, key := range platforms {
		ids, skipped := s.publishToPlatform(ctx, ad, targeting, key)
		if skipped {
			outcome.Skipped = append(outcome.Skipped, key)
		}
		if ids != nil {
			identifiers = append(identifiers, *ids)
			succeeded++
		}
	}

	outcome.Attempted = len(platforms)
	outcome.Succeeded = succeeded
	outcome.Status = ResolveStatus(true, len(platforms), succeeded)

	// Terminal status and all successful platform identifiers land in one write.
	if err := s.adRepo.UpdatePublishOutcome(ctx, ad.ID, outcome.Status, identifiers); err != nil {
		s.logger.Printf("publisher: persist outcome for ad id=%d failed: %v", ad.ID, err)
		outcome.Status = models.AdStatusErrorProcessing
		outcome.Note = err.Error()
		s.markError(ctx, ad.ID)
	}
	return outcome
}

// requestSegmentation calls the segmentation service and converts every
// failure into "no result".
func (s *PublishScheduler) requestSegmentation(ctx context.Context, ad *models.Ad) *services.SegmentationResult {
	segCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	res, err := s.segClient.Segment(segCtx, ad.SegmentationText())
	if err != nil {
		s.logger.Printf("publisher: segmentation for ad id=%d failed: %v", ad.ID, err)
		return nil
	}
	return res
}

func (s *PublishScheduler) clusterName(clusterID *int) *string {
	if clusterID == nil || s.clusters == nil {
		return nil
	}
	if name, ok := s.clusters.Name(*clusterID); ok {
		return &name
	}
	return nil
}

// publishToPlatform runs the connection check, asset preparation,
// translation, and submission for one platform. Every fault is contained
// here; the returned identifiers are nil unless the submission produced at
// least the top-level campaign id. skipped is true when the platform had no
// usable connection and was never attempted.
func (s *PublishScheduler) publishToPlatform(ctx context.Context, ad *models.Ad, targeting models.Targeting, key string) (ids *repository.PlatformIdentifiers, skipped bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("publisher: panic in %s adapter for ad id=%d: %v", key, ad.ID, r)
			platformAttemptsTotal.WithLabelValues(key, outcomeFailed).Inc()
			ids = nil
			skipped = false
		}
	}()

	pub := s.registry.Get(key)
	if pub == nil {
		s.logger.Printf("publisher: no adapter registered for platform %s, skipping ad id=%d", key, ad.ID)
		platformAttemptsTotal.WithLabelValues(key, outcomeSkipped).Inc()
		return nil, true
	}

	creds, err := s.resolveCredentials(ctx, ad, pub)
	if err != nil {
		s.logger.Printf("publisher: %s connection unusable for tenant=%d, skipping ad id=%d: %v", key, ad.TenantID, ad.ID, err)
		platformAttemptsTotal.WithLabelValues(key, outcomeSkipped).Inc()
		return nil, true
	}

	assetHandle := ""
	if ad.CreativeURL != nil && *ad.CreativeURL != "" {
		assetCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
		handle, err := pub.PrepareAsset(assetCtx, creds, *ad.CreativeURL)
		cancel()
		if err != nil {
			// Translators tolerate a missing asset handle; proceed without it.
			s.logger.Printf("publisher: %s asset upload for ad id=%d failed, continuing without creative: %v", key, ad.ID, err)
		} else {
			assetHandle = handle
		}
	}

	payload := pub.Translate(ad, targeting, assetHandle)
	if payload == nil {
		s.logger.Printf("publisher: ad id=%d cannot be represented for platform %s", ad.ID, key)
		platformAttemptsTotal.WithLabelValues(key, outcomeFailed).Inc()
		return nil, false
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()
	result, err := pub.Submit(submitCtx, creds, payload)
	if err != nil || result == nil || result.CampaignID == "" {
		s.logger.Printf("publisher: %s submission for ad id=%d failed: %v", key, ad.ID, err)
		platformAttemptsTotal.WithLabelValues(key, outcomeFailed).Inc()
		return nil, false
	}

	s.logger.Printf("publisher: %s submission for ad id=%d succeeded campaign=%s", key, ad.ID, result.CampaignID)
	platformAttemptsTotal.WithLabelValues(key, outcomeSuccess).Inc()
	return &repository.PlatformIdentifiers{
		PlatformKey: key,
		ExternalIDs: result.ExternalIDs(),
	}, false
}

// resolveCredentials loads and decrypts the tenant's connection for the
// platform. The returned error classifies why the connection is unusable;
// decryption failures are caught here and never propagate.
func (s *PublishScheduler) resolveCredentials(ctx context.Context, ad *models.Ad, pub services.PlatformPublisher) (services.PlatformCredentials, error) {
	var creds services.PlatformCredentials

	conn, err := s.connRepo.ActiveByTenantAndPlatform(ctx, ad.TenantID, pub.Key())
	if err != nil {
		return creds, fmt.Errorf("connection lookup failed: %w", err)
	}
	if conn == nil {
		return creds, businessflow.ErrConnectionNotFound
	}
	if conn.AccountID == "" || conn.EncryptedAccessToken == "" {
		return creds, businessflow.ErrConnectionIncomplete
	}
	if pub.RequiresFunding() && (conn.FundingID == nil || *conn.FundingID == "") {
		return creds, businessflow.ErrFundingIDRequired
	}

	token, err := utils.DecryptCredential(conn.EncryptedAccessToken, s.credentialKey)
	if err != nil {
		return creds, fmt.Errorf("%w: credential decryption failed", businessflow.ErrConnectionIncomplete)
	}

	creds.AccessToken = token
	creds.AccountID = conn.AccountID
	if conn.FundingID != nil {
		creds.FundingID = *conn.FundingID
	}
	return creds, nil
}

func (s *PublishScheduler) markError(ctx context.Context, adID uint) {
	if err := s.adRepo.UpdateStatus(ctx, adID, models.AdStatusErrorProcessing); err != nil {
		s.logger.Printf("publisher: mark error_processing failed for ad id=%d: %v", adID, err)
	}
}
