package fossil

import (
	"context"
	"fmt"
	"net/url"
	gosync "sync"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/nhle/fossilsync/internal/credential"
	"github.com/nhle/fossilsync/internal/model"
	"github.com/nhle/fossilsync/internal/render"
	"github.com/nhle/fossilsync/internal/source"
)

// Option keys of a fossil target section.
const (
	OptUsername           = "username"
	OptPassword           = "password"
	OptURL                = "url"
	OptReportID           = "report_id"
	OptProjectName        = "project_name"
	OptDefaultPriority    = "default_priority"
	OptImportLabelsAsTags = "import_labels_as_tags"
	OptLabelTemplate      = "label_template"
	OptDescriptionLength  = "description_length"
	OptInlineLinks        = "inline_links"
)

// requiredOptions must be present in every fossil target section.
var requiredOptions = []string{
	OptUsername, OptPassword, OptURL,
	OptReportID, OptProjectName, OptDefaultPriority,
}

// Option defaults.
const (
	DefaultLabelTemplate     = "{{label}}"
	DefaultDescriptionLength = 35
)

func init() {
	source.Register(source.ServiceTypeFossil, source.Factory{
		New: func(
			ctx context.Context,
			cfg model.TargetConfig,
			deps source.Deps,
		) (source.Service, error) {
			return NewService(ctx, cfg, deps)
		},
		UDAs:     UDAs,
		Validate: ValidateConfig,
	})
}

// Config is a validated fossil target section.
type Config struct {
	Target   string
	URL      string
	Username string
	Password string
	ReportID string

	Normalizer NormalizerConfig
}

// ParseConfig validates a target section and decodes its options. It
// performs no I/O; the password is returned unresolved.
func ParseConfig(cfg model.TargetConfig) (Config, error) {
	for _, key := range requiredOptions {
		if !cfg.Has(key) {
			return Config{}, source.MissingOption(cfg.Name, key)
		}
	}

	baseURL, err := parseBaseURL(cfg.Get(OptURL))
	if err != nil {
		return Config{}, source.InvalidOption(cfg.Name, OptURL, err)
	}

	if cfg.Get(OptReportID) == "" {
		return Config{}, source.InvalidOption(
			cfg.Name, OptReportID, fmt.Errorf("must not be empty"),
		)
	}

	priority, err := model.ParsePriority(cfg.Get(OptDefaultPriority))
	if err != nil {
		return Config{}, source.InvalidOption(cfg.Name, OptDefaultPriority, err)
	}

	importLabels := false
	if cfg.Has(OptImportLabelsAsTags) {
		importLabels, err = cast.ToBoolE(cfg.Get(OptImportLabelsAsTags))
		if err != nil {
			return Config{}, source.InvalidOption(cfg.Name, OptImportLabelsAsTags, err)
		}
	}

	templateSource := DefaultLabelTemplate
	if cfg.Get(OptLabelTemplate) != "" {
		templateSource = cfg.Get(OptLabelTemplate)
	}
	labelTemplate, err := render.Parse(templateSource)
	if err != nil {
		return Config{}, source.InvalidOption(cfg.Name, OptLabelTemplate, err)
	}

	descLength := DefaultDescriptionLength
	if cfg.Has(OptDescriptionLength) {
		descLength, err = cast.ToIntE(cfg.Get(OptDescriptionLength))
		if err != nil || descLength < 0 {
			if err == nil {
				err = fmt.Errorf("must not be negative")
			}
			return Config{}, source.InvalidOption(cfg.Name, OptDescriptionLength, err)
		}
	}

	inlineLinks := true
	if cfg.Has(OptInlineLinks) {
		inlineLinks, err = cast.ToBoolE(cfg.Get(OptInlineLinks))
		if err != nil {
			return Config{}, source.InvalidOption(cfg.Name, OptInlineLinks, err)
		}
	}

	return Config{
		Target:   cfg.Name,
		URL:      baseURL,
		Username: cfg.Get(OptUsername),
		Password: cfg.Get(OptPassword),
		ReportID: cfg.Get(OptReportID),
		Normalizer: NormalizerConfig{
			ProjectName:        cfg.Get(OptProjectName),
			DefaultPriority:    priority,
			ImportLabelsAsTags: importLabels,
			LabelTemplate:      labelTemplate,
			DescriptionLength:  descLength,
			InlineLinks:        inlineLinks,
		},
	}, nil
}

// ValidateConfig reports whether cfg is a usable fossil target section.
func ValidateConfig(cfg model.TargetConfig) error {
	_, err := ParseConfig(cfg)
	return err
}

func parseBaseURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}
	return NormalizeBaseURL(raw), nil
}

// KeyringKey names the password of username at baseURL in the keyring.
func KeyringKey(username, baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "fossil://" + username + "@" + baseURL
	}
	return "fossil://" + username + "@" + u.Host + u.Path
}

// Service implements source.Service for a Fossil ticket report. A Service
// lives for one synchronization pass: it logs in at most once and keeps
// the session until it is discarded.
type Service struct {
	cfg        Config
	client     *Client
	normalizer *Normalizer
	logger     *zap.Logger

	// secrets and secretReq are set when the password was resolved, so a
	// rejected one can be forgotten.
	secrets   credential.Resolver
	secretReq credential.Request

	mu       gosync.Mutex
	loggedIn bool
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clientOpts []ClientOption
}

// WithClientOptions passes opts to the underlying Client.
func WithClientOptions(opts ...ClientOption) ServiceOption {
	return func(o *serviceOptions) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// NewService validates cfg, resolves the password and builds a Service.
// Configuration errors are returned before any network activity.
func NewService(
	ctx context.Context,
	cfg model.TargetConfig,
	deps source.Deps,
	opts ...ServiceOption,
) (*Service, error) {
	conf, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("service", string(source.ServiceTypeFossil)),
		zap.String("target", conf.Target),
	)

	var (
		secrets   credential.Resolver
		secretReq credential.Request
	)
	if conf.Username != "" && credential.NeedsResolution(conf.Password) {
		if deps.Secrets == nil {
			return nil, fmt.Errorf(
				"target %s: password needs resolving but no secret resolver is configured",
				conf.Target,
			)
		}
		secretReq = credential.Request{
			Key:         KeyringKey(conf.Username, conf.URL),
			Username:    conf.Username,
			Value:       conf.Password,
			Interactive: deps.Interactive,
		}
		secrets = deps.Secrets
		conf.Password, err = secrets.Resolve(ctx, secretReq)
		if err != nil {
			return nil, fmt.Errorf("target %s: resolving password: %w", conf.Target, err)
		}
	}

	client, err := NewClient(conf.URL, o.clientOpts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:        conf,
		client:     client,
		normalizer: NewNormalizer(conf.Normalizer),
		logger:     logger,
		secrets:    secrets,
		secretReq:  secretReq,
	}, nil
}

// Type returns the source type identifier for Fossil.
func (s *Service) Type() source.ServiceType {
	return source.ServiceTypeFossil
}

// Target returns the configured target name.
func (s *Service) Target() string {
	return s.cfg.Target
}

// UDAs declares the custom fields of Fossil issues.
func (s *Service) UDAs() []model.UDA {
	return UDAs()
}

// Tickets logs in when needed and returns every ticket of the report.
func (s *Service) Tickets(ctx context.Context) ([]Ticket, error) {
	if err := s.ensureSession(ctx); err != nil {
		return nil, err
	}

	tickets, err := s.client.FetchReport(ctx, s.cfg.ReportID)
	if err != nil {
		return nil, fmt.Errorf("fetching Fossil report: %w", err)
	}
	return tickets, nil
}

// Issues returns the normalized open tickets of the configured report.
func (s *Service) Issues(ctx context.Context) ([]model.Issue, error) {
	tickets, err := s.Tickets(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fetched tickets", zap.Int("total", len(tickets)))

	open := FilterOpen(tickets)
	s.logger.Debug("filtered open tickets", zap.Int("open", len(open)))

	issues := make([]model.Issue, 0, len(open))
	for _, t := range open {
		issue, err := s.normalizer.Normalize(t, Extra{})
		if err != nil {
			return nil, fmt.Errorf("normalizing Fossil ticket: %w", err)
		}
		issues = append(issues, issue)
	}

	return issues, nil
}

// ensureSession logs in once per Service. Without a username or password
// the report is fetched anonymously.
func (s *Service) ensureSession(ctx context.Context) error {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedIn {
		return nil
	}

	err := s.client.Login(
		ctx, s.cfg.Username, s.cfg.Password, s.client.ReportURL(s.cfg.ReportID),
	)
	if err != nil {
		if source.IsAuthError(err) && s.secrets != nil {
			if ferr := s.secrets.Forget(ctx, s.secretReq); ferr != nil {
				s.logger.Warn("forgetting rejected password", zap.Error(ferr))
			}
		}
		return fmt.Errorf("logging in to Fossil: %w", err)
	}

	s.loggedIn = true
	s.logger.Debug("logged in", zap.String("user", s.cfg.Username))
	return nil
}
