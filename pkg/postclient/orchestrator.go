package postclient

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"instacap/internal/domain"
	"instacap/internal/providers/language"
	"instacap/internal/providers/vision"
)

// Annotator and Generator are the direct-to-provider collaborators used by
// the unmetered fallback path.
type Annotator interface {
	Annotate(ctx context.Context, image []byte) (*vision.Analysis, error)
}

type Generator interface {
	GeneratePost(ctx context.Context, req language.CaptionRequest) (*domain.PostContent, error)
}

// Orchestrator drives one generation attempt end to end: local admission,
// the metered backend call, reconciliation of the returned entitlement, and
// a direct-to-provider fallback when the backend itself is down.
type Orchestrator struct {
	api      *Client
	session  *SessionManager
	store    *EntitlementStore
	rec      *Reconciler
	vision   Annotator
	language Generator
	logger   zerolog.Logger
}

// OrchestratorOptions wires the Orchestrator's collaborators. Vision and
// Language are optional; without them the fallback path is disabled and
// backend failures surface as-is.
type OrchestratorOptions struct {
	API      *Client
	Session  *SessionManager
	Store    *EntitlementStore
	Rec      *Reconciler
	Vision   Annotator
	Language Generator
	Logger   zerolog.Logger
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		api:      opts.API,
		session:  opts.Session,
		store:    opts.Store,
		rec:      opts.Rec,
		vision:   opts.Vision,
		language: opts.Language,
		logger:   opts.Logger,
	}
}

// Generate produces post content for one image.
//
// The local gate runs first so a user who is logged out or visibly over
// quota gets an immediate answer without a network round trip. The backend
// remains authoritative: its quota verdict overrides whatever the local
// snapshot said, and every successful response re-syncs the snapshot.
func (o *Orchestrator) Generate(ctx context.Context, imageData string, opts domain.PostOptions) (*domain.PostContent, error) {
	if err := checkImagePayload(imageData); err != nil {
		return nil, err
	}

	decision := Admit(o.session.Authenticated(), o.store.Get())
	if !decision.Allowed {
		switch decision.Reason {
		case ReasonNotAuthenticated:
			return nil, domain.ErrUnauthorized
		default:
			return nil, domain.ErrQuotaExceeded
		}
	}

	result, err := o.api.GeneratePost(ctx, o.session.Token(), imageData, opts)
	if err == nil {
		o.rec.Apply(result.User.Entitlement())
		return result.Content, nil
	}

	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		// The backend knows better than the local snapshot; adopt its count
		// so the gate denies locally next time.
		o.rec.Apply(quotaErr.Entitlement())
		return nil, domain.ErrQuotaExceeded
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			o.session.Logout()
			return nil, domain.ErrUnauthorized
		case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
			// Client-side mistake, retrying against the providers directly
			// would fail the same way.
			return nil, err
		}
	}

	// Backend unavailable or erroring. One direct attempt against the
	// providers keeps the product usable; it bypasses metering, so the
	// local counter is left untouched.
	return o.generateDirect(ctx, imageData, opts, err)
}

func (o *Orchestrator) generateDirect(ctx context.Context, imageData string, opts domain.PostOptions, cause error) (*domain.PostContent, error) {
	if o.vision == nil || o.language == nil {
		return nil, cause
	}
	o.logger.Warn().Err(cause).Msg("backend generation failed, falling back to direct providers")

	image, err := decodeImagePayload(imageData)
	if err != nil {
		return nil, err
	}
	analysis, err := o.vision.Annotate(ctx, image)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	opts.Normalize("")
	content, err := o.language.GeneratePost(ctx, language.CaptionRequest{
		Options:  opts,
		Analysis: *analysis,
	})
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return content, nil
}

// checkImagePayload rejects obviously bad payloads before any network or
// quota activity. Full decoding and type sniffing is the backend's job.
func checkImagePayload(imageData string) error {
	trimmed := strings.TrimSpace(imageData)
	if trimmed == "" {
		return domain.ErrNoImage
	}
	if strings.HasPrefix(trimmed, "data:") {
		if idx := strings.Index(trimmed, ","); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
	}
	if len(trimmed) > domain.MaxImageBytes*4/3+4 {
		return domain.ErrImageTooLarge
	}
	return nil
}

func decodeImagePayload(imageData string) ([]byte, error) {
	trimmed := strings.TrimSpace(imageData)
	if strings.HasPrefix(trimmed, "data:") {
		if idx := strings.Index(trimmed, ","); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
	}
	image, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, domain.ErrNoImage
	}
	if len(image) > domain.MaxImageBytes {
		return nil, domain.ErrImageTooLarge
	}
	if !domain.SupportedImageType(http.DetectContentType(image)) {
		return nil, domain.ErrUnsupportedImage
	}
	return image, nil
}

// RefreshEntitlement pulls the authoritative usage snapshot, typically when
// the popup opens.
func (o *Orchestrator) RefreshEntitlement(ctx context.Context) (domain.Entitlement, error) {
	token := o.session.Token()
	if token == "" {
		return o.store.Get(), domain.ErrUnauthorized
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	profile, err := o.api.Me(ctx, token)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized {
			o.session.Logout()
			return o.store.Get(), domain.ErrUnauthorized
		}
		return o.store.Get(), err
	}
	o.rec.Apply(profile.Entitlement())
	return o.store.Get(), nil
}
