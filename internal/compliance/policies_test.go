package compliance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mealvault/mealvault/internal/models"
)

func TestDefaultPoliciesCoverEveryPlatform(t *testing.T) {
	policies := DefaultPolicies()
	for _, p := range models.AllPlatforms() {
		policy, ok := policies[p]
		if !ok {
			t.Errorf("no default policy for %s", p)
			continue
		}
		if err := ValidatePolicy(policy); err != nil {
			t.Errorf("default policy for %s invalid: %v", p, err)
		}
	}
	if !policies[models.PlatformFoodBlog].RespectRobotsTxt {
		t.Error("food blogs should respect robots.txt")
	}
}

func TestParsePolicies(t *testing.T) {
	data := []byte(`
policies:
  instagram:
    requests_per_minute: 5
    cooldown_period: 30s
  foodBlog:
    respect_robots_txt: false
`)

	policies, err := ParsePolicies(data, DefaultPolicies())
	if err != nil {
		t.Fatalf("ParsePolicies() error = %v", err)
	}

	ig := policies[models.PlatformInstagram]
	if ig.RequestsPerMinute != 5 {
		t.Errorf("RequestsPerMinute = %d, want 5", ig.RequestsPerMinute)
	}
	if ig.CooldownPeriod != 30*time.Second {
		t.Errorf("CooldownPeriod = %v, want 30s", ig.CooldownPeriod)
	}
	// Unnamed fields keep their defaults.
	if ig.RequestsPerHour != DefaultPolicies()[models.PlatformInstagram].RequestsPerHour {
		t.Errorf("RequestsPerHour = %d, want default", ig.RequestsPerHour)
	}
	if policies[models.PlatformFoodBlog].RespectRobotsTxt {
		t.Error("expected robots.txt override to apply")
	}
}

func TestParsePoliciesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown platform", "policies:\n  myspace:\n    requests_per_minute: 1\n"},
		{"negative limit", "policies:\n  tiktok:\n    requests_per_hour: -1\n"},
		{"bad yaml", "policies: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePolicies([]byte(tt.data), DefaultPolicies()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadPolicies(t *testing.T) {
	policies, err := LoadPolicies("")
	if err != nil {
		t.Fatalf("LoadPolicies(\"\") error = %v", err)
	}
	if len(policies) != len(models.AllPlatforms()) {
		t.Errorf("got %d policies, want %d", len(policies), len(models.AllPlatforms()))
	}

	path := filepath.Join(t.TempDir(), "policies.yaml")
	if err := os.WriteFile(path, []byte("policies:\n  youtube:\n    burst_limit: 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	policies, err = LoadPolicies(path)
	if err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}
	if got := policies[models.PlatformYouTube].BurstLimit; got != 2 {
		t.Errorf("BurstLimit = %d, want 2", got)
	}

	if _, err := LoadPolicies(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
