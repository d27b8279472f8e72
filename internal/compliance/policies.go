package compliance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mealvault/mealvault/internal/models"
)

// DefaultUserAgent identifies outbound scraper traffic.
const DefaultUserAgent = "MealVaultBot/1.0 (+https://mealvault.app/bot)"

// DefaultPolicies returns the built-in per-platform quotas.
func DefaultPolicies() map[models.Platform]models.RateLimitPolicy {
	return map[models.Platform]models.RateLimitPolicy{
		models.PlatformInstagram: {
			RequestsPerMinute: 20, RequestsPerHour: 200, RequestsPerDay: 1000,
			BurstLimit: 5, CooldownPeriod: 10 * time.Second,
			RetryAfterHeader: true, ExponentialBackoff: true,
		},
		models.PlatformTikTok: {
			RequestsPerMinute: 15, RequestsPerHour: 150, RequestsPerDay: 800,
			BurstLimit: 3, CooldownPeriod: 15 * time.Second,
			RetryAfterHeader: true, ExponentialBackoff: true,
		},
		models.PlatformPinterest: {
			RequestsPerMinute: 30, RequestsPerHour: 300, RequestsPerDay: 2000,
			BurstLimit: 10, CooldownPeriod: 5 * time.Second,
			RetryAfterHeader: true,
		},
		models.PlatformFacebook: {
			RequestsPerMinute: 10, RequestsPerHour: 100, RequestsPerDay: 500,
			BurstLimit: 3, CooldownPeriod: 20 * time.Second,
			RetryAfterHeader: true, ExponentialBackoff: true,
		},
		models.PlatformTwitter: {
			RequestsPerMinute: 15, RequestsPerHour: 180, RequestsPerDay: 900,
			BurstLimit: 5, CooldownPeriod: 10 * time.Second,
			RetryAfterHeader: true, ExponentialBackoff: true,
		},
		models.PlatformYouTube: {
			RequestsPerMinute: 60, RequestsPerHour: 1000, RequestsPerDay: 10000,
			BurstLimit: 10, CooldownPeriod: 2 * time.Second,
			RetryAfterHeader: true,
		},
		models.PlatformFoodBlog: {
			RequestsPerMinute: 30, RequestsPerHour: 500, RequestsPerDay: 5000,
			BurstLimit: 5, CooldownPeriod: 3 * time.Second,
			RespectRobotsTxt: true, RetryAfterHeader: true,
		},
		models.PlatformWhatsApp: {
			RequestsPerMinute: 120, BurstLimit: 20, CooldownPeriod: time.Second,
		},
		models.PlatformEmail: {
			RequestsPerMinute: 120, BurstLimit: 20, CooldownPeriod: time.Second,
		},
		models.PlatformEvernote: {
			RequestsPerMinute: 60, RequestsPerHour: 1000,
			BurstLimit: 10, CooldownPeriod: time.Second,
			RetryAfterHeader: true, ExponentialBackoff: true,
		},
		models.PlatformAppleNotes: {
			RequestsPerMinute: 60, RequestsPerHour: 1000,
			BurstLimit: 10, CooldownPeriod: time.Second,
		},
		models.PlatformImageOCR: {
			RequestsPerMinute: 20, RequestsPerHour: 500,
			BurstLimit: 5, CooldownPeriod: 2 * time.Second,
		},
	}
}

// DefaultComplianceConfig returns the global collaborator settings.
func DefaultComplianceConfig() models.ComplianceConfig {
	return models.ComplianceConfig{
		UserAgent:    DefaultUserAgent,
		MaxRedirects: 5,
		Timeout:      30 * time.Second,
		Retry: models.RetrySettings{
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			BackoffFactor:  2.0,
		},
		BlockedPathPatterns: []string{
			`^/accounts/login`,
			`^/login`,
			`/checkpoint/`,
			`^/direct/`,
			`^/messages/`,
		},
	}
}

// policyOverride mirrors RateLimitPolicy with optional fields so a file only
// needs to name the values it changes.
type policyOverride struct {
	RequestsPerMinute  *int           `yaml:"requests_per_minute"`
	RequestsPerHour    *int           `yaml:"requests_per_hour"`
	RequestsPerDay     *int           `yaml:"requests_per_day"`
	BurstLimit         *int           `yaml:"burst_limit"`
	CooldownPeriod     *time.Duration `yaml:"cooldown_period"`
	RespectRobotsTxt   *bool          `yaml:"respect_robots_txt"`
	RetryAfterHeader   *bool          `yaml:"retry_after_header"`
	ExponentialBackoff *bool          `yaml:"exponential_backoff"`
}

type policyFile struct {
	Policies map[string]policyOverride `yaml:"policies"`
}

// LoadPolicies reads YAML overrides from path and applies them over the
// defaults. An empty path returns the defaults.
func LoadPolicies(path string) (map[models.Platform]models.RateLimitPolicy, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data, policies)
}

// ParsePolicies applies YAML overrides onto base.
func ParsePolicies(data []byte, base map[models.Platform]models.RateLimitPolicy) (map[models.Platform]models.RateLimitPolicy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	out := make(map[models.Platform]models.RateLimitPolicy, len(base))
	for p, policy := range base {
		out[p] = policy
	}

	for name, o := range file.Policies {
		platform, ok := models.ParsePlatform(name)
		if !ok {
			return nil, fmt.Errorf("unknown platform in policy file: %s", name)
		}
		policy := out[platform]
		applyOverride(&policy, o)
		if err := ValidatePolicy(policy); err != nil {
			return nil, fmt.Errorf("policy %s: %w", name, err)
		}
		out[platform] = policy
	}
	return out, nil
}

func applyOverride(p *models.RateLimitPolicy, o policyOverride) {
	if o.RequestsPerMinute != nil {
		p.RequestsPerMinute = *o.RequestsPerMinute
	}
	if o.RequestsPerHour != nil {
		p.RequestsPerHour = *o.RequestsPerHour
	}
	if o.RequestsPerDay != nil {
		p.RequestsPerDay = *o.RequestsPerDay
	}
	if o.BurstLimit != nil {
		p.BurstLimit = *o.BurstLimit
	}
	if o.CooldownPeriod != nil {
		p.CooldownPeriod = *o.CooldownPeriod
	}
	if o.RespectRobotsTxt != nil {
		p.RespectRobotsTxt = *o.RespectRobotsTxt
	}
	if o.RetryAfterHeader != nil {
		p.RetryAfterHeader = *o.RetryAfterHeader
	}
	if o.ExponentialBackoff != nil {
		p.ExponentialBackoff = *o.ExponentialBackoff
	}
}

// ValidatePolicy rejects negative limits and durations.
func ValidatePolicy(p models.RateLimitPolicy) error {
	if p.RequestsPerMinute < 0 || p.RequestsPerHour < 0 || p.RequestsPerDay < 0 {
		return fmt.Errorf("request limits must be non-negative")
	}
	if p.BurstLimit < 0 {
		return fmt.Errorf("burst limit must be non-negative")
	}
	if p.CooldownPeriod < 0 {
		return fmt.Errorf("cooldown period must be non-negative")
	}
	return nil
}
