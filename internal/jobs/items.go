package jobs

import (
	"context"

	"github.com/mealvault/mealvault/internal/detector"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

// Extractor is the dispatcher surface URL imports need.
type Extractor interface {
	Extract(ctx context.Context, rawURL string, platform models.Platform, opts extraction.Options) (*extraction.Result, error)
}

// ResultSink receives every recipe an import produces.
type ResultSink func(ctx context.Context, jobID string, res *extraction.Result) error

// URLItems turns URLs into import items that run through the dispatcher.
// platform may be empty to detect each URL separately.
func URLItems(x Extractor, urls []string, platform models.Platform, opts extraction.Options, sink ResultSink) []Item {
	items := make([]Item, 0, len(urls))
	for _, u := range urls {
		p := platform
		if p == "" {
			p, _ = detector.Detect(u)
		}
		items = append(items, Item{
			Label:    u,
			Platform: p,
			Process:  func(ctx context.Context, jobID string) error {
				o := opts
				o.JobID = jobID
				res, err := x.Extract(ctx, u, platform, o)
				if err != nil {
					return err
				}
				if sink != nil {
					return sink(ctx, jobID, res)
				}
				return nil
			},
		})
	}
	return items
}
