package cfg

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/simplesurance/autorelease/internal/autorelease"
	"github.com/simplesurance/autorelease/internal/changelog"
	"github.com/simplesurance/autorelease/internal/githubrelease"
	"github.com/simplesurance/autorelease/internal/labels"
	"github.com/simplesurance/autorelease/internal/release"
	"github.com/simplesurance/autorelease/internal/versionstore"
)

// Default values of the configuration.
const (
	DefaultHTTPListenAddr            = ":8085"
	DefaultHTTPGithubWebhookEndpoint = "/listener/github"
	DefaultHTTPReleasesEndpoint      = "/releases"
	DefaultLogFormat                 = "logfmt"
	DefaultLogTimeKey                = "time_iso8601"
	DefaultLogLevel                  = "info"
)

type Config struct {
	HTTPListenAddr            string  `toml:"http_server_listen_addr"`
	HTTPSListenAddr           string  `toml:"https_server_listen_addr"`
	HTTPSCertFile             string  `toml:"https_ssl_cert_file"`
	HTTPSKeyFile              string  `toml:"https_ssl_key_file"`
	HTTPGithubWebhookEndpoint string  `toml:"github_webhook_endpoint"`
	HTTPReleasesEndpoint      string  `toml:"http_releases_endpoint"`
	GithubWebHookSecret       string  `toml:"github_webhook_secret"`
	GithubAPIToken            string  `toml:"github_api_token"`
	GithubAPIURL              string  `toml:"github_api_url"`
	LogFormat                 string  `toml:"log_format"`
	LogTimeKey                string  `toml:"log_time_key"`
	LogLevel                  string  `toml:"log_level"`
	Release                   Release `toml:"release"`
}

type GithubRepository struct {
	Owner  string `toml:"owner"`
	Name   string `toml:"name"`
	Branch string `toml:"branch"`
}

func (r *GithubRepository) String() string {
	return fmt.Sprintf("%s/%s (%s)", r.Owner, r.Name, r.Branch)
}

// Release configures how releases are created.
type Release struct {
	PatchLabels []string `toml:"patch_labels"`
	MinorLabels []string `toml:"minor_labels"`
	MajorLabels []string `toml:"major_labels"`

	VersionFile   string `toml:"version_file"`
	ChangelogFile string `toml:"changelog_file"`
	ItemTemplate  string `toml:"changelog_item_template"`

	TagPrefix       string `toml:"tag_prefix"`
	CreateTag       bool   `toml:"create_tag"`
	BranchPrefix    string `toml:"branch_prefix"`
	MergeMethod     string `toml:"merge_method"`
	AutoMergeMethod string `toml:"auto_merge_method"`

	PullRequestLabels []string `toml:"pull_request_labels"`
	MaxChangeRecords  int      `toml:"max_change_records"`

	TriggerQuery    string `toml:"trigger_query"`
	CommentOnPR     bool   `toml:"comment_on_pr"`
	CommentTemplate string `toml:"comment_template"`
	RetryTimeout    string `toml:"retry_timeout"`
	DryRun          bool   `toml:"dry_run"`

	Repositories  []GithubRepository `toml:"repository"`
	Notifications []Notification     `toml:"notification"`
}

// Notification configures a http endpoint that receives the results of
// release runs.
type Notification struct {
	URL      string            `toml:"url"`
	Method   string            `toml:"method"`
	User     string            `toml:"user"`
	Password string            `toml:"password"`
	Headers  map[string]string `toml:"headers"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.ApplyDefaults()

	return &result, nil
}

// ApplyDefaults sets all unset fields to their default values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.HTTPGithubWebhookEndpoint, DefaultHTTPGithubWebhookEndpoint)
	setDefault(&c.HTTPReleasesEndpoint, DefaultHTTPReleasesEndpoint)
	setDefault(&c.LogFormat, DefaultLogFormat)
	setDefault(&c.LogTimeKey, DefaultLogTimeKey)
	setDefault(&c.LogLevel, DefaultLogLevel)

	if c.HTTPListenAddr == "" && c.HTTPSListenAddr == "" {
		c.HTTPListenAddr = DefaultHTTPListenAddr
	}

	r := &c.Release

	if len(r.PatchLabels) == 0 && len(r.MinorLabels) == 0 && len(r.MajorLabels) == 0 {
		r.PatchLabels = []string{labels.DefaultPatchLabel}
		r.MinorLabels = []string{labels.DefaultMinorLabel}
		r.MajorLabels = []string{labels.DefaultMajorLabel}
	}

	setDefault(&r.VersionFile, versionstore.DefaultVersionFile)
	setDefault(&r.ChangelogFile, versionstore.DefaultChangelogFile)
	setDefault(&r.ItemTemplate, changelog.DefaultItemTemplate)
	setDefault(&r.TagPrefix, release.DefaultTagPrefix)
	setDefault(&r.BranchPrefix, githubrelease.DefaultBranchPrefix)
	setDefault(&r.MergeMethod, string(release.MergeMethodMerge))
	setDefault(&r.AutoMergeMethod, string(release.MergeMethodMerge))
	setDefault(&r.TriggerQuery, autorelease.DefaultTriggerQuery)
	setDefault(&r.CommentTemplate, autorelease.DefaultCommentTemplate)
	setDefault(&r.RetryTimeout, autorelease.DefRetryTimeout.String())

	if r.MaxChangeRecords == 0 {
		r.MaxChangeRecords = githubrelease.DefaultMaxChangeRecords
	}

	for i := range r.Notifications {
		setDefault(&r.Notifications[i].Method, http.MethodPost)
	}
}

func setDefault(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

// Validate returns an error describing all invalid settings.
func (c *Config) Validate() error {
	var errs []error

	if c.GithubAPIToken == "" {
		errs = append(errs, errors.New("github_api_token must be set"))
	}

	if c.HTTPSListenAddr != "" && (c.HTTPSCertFile == "" || c.HTTPSKeyFile == "") {
		errs = append(errs, errors.New("https_ssl_cert_file and https_ssl_key_file must be set when https_server_listen_addr is set"))
	}

	if !strings.HasPrefix(c.HTTPGithubWebhookEndpoint, "/") {
		errs = append(errs, fmt.Errorf("github_webhook_endpoint %q must start with a /", c.HTTPGithubWebhookEndpoint))
	}

	switch c.LogFormat {
	case "logfmt", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is invalid, supported values: logfmt, console, json", c.LogFormat))
	}

	if err := c.Release.validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (r *Release) validate() error {
	var errs []error

	classifier, err := labels.NewClassifier(r.PatchLabels, r.MinorLabels, r.MajorLabels)
	if err != nil {
		errs = append(errs, fmt.Errorf("release labels: %w", err))
	} else if c := classifier.Classify(labels.NewLabelSet(r.PullRequestLabels...)); c.ShouldRelease {
		errs = append(errs, fmt.Errorf("pull_request_labels: must not contain release labels: %v", c.Labels))
	}

	if _, err := changelog.NewTemplateFormatter(r.ItemTemplate); err != nil {
		errs = append(errs, fmt.Errorf("changelog_item_template: %w", err))
	}

	if _, err := release.ParseMergeMethod(r.MergeMethod); err != nil {
		errs = append(errs, fmt.Errorf("merge_method: %w", err))
	}

	if m, err := release.ParseMergeMethod(r.AutoMergeMethod); err != nil {
		errs = append(errs, fmt.Errorf("auto_merge_method: %w", err))
	} else if m == release.MergeMethodAuto {
		errs = append(errs, errors.New("auto_merge_method: must be merge, squash or rebase"))
	}

	if _, err := autorelease.NewTrigger(r.TriggerQuery); err != nil {
		errs = append(errs, fmt.Errorf("trigger_query: %w", err))
	}

	if r.CommentOnPR {
		if _, err := autorelease.ParseCommentTemplate(r.CommentTemplate); err != nil {
			errs = append(errs, fmt.Errorf("comment_template: %w", err))
		}
	}

	if d, err := time.ParseDuration(r.RetryTimeout); err != nil {
		errs = append(errs, fmt.Errorf("retry_timeout: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("retry_timeout: must be positive, is %s", d))
	}

	if r.MaxChangeRecords < 0 {
		errs = append(errs, fmt.Errorf("max_change_records: must not be negative, is %d", r.MaxChangeRecords))
	}

	if r.BranchPrefix == "" {
		errs = append(errs, errors.New("branch_prefix must not be empty"))
	}

	if len(r.Repositories) == 0 {
		errs = append(errs, errors.New("at least one release.repository must be configured"))
	}

	seen := make(map[string]struct{}, len(r.Repositories))
	for i, repo := range r.Repositories {
		if repo.Owner == "" || repo.Name == "" || repo.Branch == "" {
			errs = append(errs, fmt.Errorf("release.repository[%d]: owner, name and branch must be set", i))
			continue
		}

		key := repo.Owner + "/" + repo.Name
		if _, exists := seen[key]; exists {
			errs = append(errs, fmt.Errorf("release.repository[%d]: repository %s is configured multiple times", i, key))
		}
		seen[key] = struct{}{}
	}

	for i, n := range r.Notifications {
		if n.URL == "" {
			errs = append(errs, fmt.Errorf("release.notification[%d]: url must be set", i))
		}
	}

	return errors.Join(errs...)
}

// RetryTimeoutDuration returns the parsed RetryTimeout.
func (r *Release) RetryTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.RetryTimeout)
	if err != nil {
		return autorelease.DefRetryTimeout
	}

	return d
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}
