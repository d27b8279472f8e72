package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mealvault/mealvault/internal/app"
	"github.com/mealvault/mealvault/internal/config"
	"github.com/mealvault/mealvault/internal/detector"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/jobs"
	"github.com/mealvault/mealvault/internal/logging"
	"github.com/mealvault/mealvault/internal/models"
)

var (
	debugMode    bool
	platformName string
	textFile     string
	imageFile    string
	language     string
	pollInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "recipectl",
	Short:         "Extract recipes from links, pasted text and images",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var detectCmd = &cobra.Command{
	Use:   "detect <url-or-text>",
	Short: "Show which platform handles an input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := detector.Detect(args[0])
		out := map[string]any{"supported": ok}
		if ok {
			out["platform"] = p
			if id := detector.ContentID(p, args[0]); id != "" {
				out["contentId"] = id
			}
		}
		return printJSON(out)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract [url]",
	Short: "Extract one recipe from a URL, a text file or an image",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := parsePlatform()
		if err != nil {
			return err
		}
		a, err := build(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var res *extraction.Result
		switch {
		case imageFile != "":
			image, readErr := os.ReadFile(imageFile)
			if readErr != nil {
				return readErr
			}
			res, err = a.Dispatcher.ExtractImage(cmd.Context(), image, extraction.OCROptions{Language: language})
		case textFile != "":
			text, readErr := os.ReadFile(textFile)
			if readErr != nil {
				return readErr
			}
			if platform == "" {
				if p, ok := detector.Detect(string(text)); ok {
					platform = p
				}
			}
			res, err = a.Dispatcher.ExtractText(cmd.Context(), platform, string(text), nil)
		case len(args) == 1:
			res, err = a.Dispatcher.Extract(cmd.Context(), args[0], platform, extraction.Options{Language: language})
		default:
			return errors.New("a url, --text-file or --image is required")
		}
		if err != nil {
			return describe(err)
		}
		return printJSON(res)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <url>...",
	Short: "Import several URLs as one job and follow its progress",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := parsePlatform()
		if err != nil {
			return err
		}
		a, err := build(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		var recipes []*models.CanonicalRecipe
		sink := func(_ context.Context, _ string, res *extraction.Result) error {
			recipes = append(recipes, res.Recipe)
			return nil
		}
		urls, dropped := jobs.UniqueURLs(args)
		if dropped > 0 {
			fmt.Fprintf(os.Stderr, "skipping %d duplicate urls\n", dropped)
		}
		id, err := a.Tracker.CreateImport(ctx, jobs.URLItems(a.Dispatcher, urls, platform, extraction.Options{Language: language}, sink))
		if err != nil {
			return err
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			job, err := a.Tracker.Status(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s: %d/%d processed (%d ok, %d failed)\n",
				job.Status, job.ProcessedItems, job.TotalItems, job.SuccessCount, job.FailureCount)
			if job.Status.IsTerminal() {
				a.Tracker.Wait()
				return printJSON(map[string]any{"progress": job, "recipes": recipes})
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				_ = a.Tracker.Cancel(context.Background(), id)
				a.Tracker.Wait()
				return ctx.Err()
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&platformName, "platform", "", "Platform to use instead of detecting it")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "Preferred content language")

	extractCmd.Flags().StringVar(&textFile, "text-file", "", "Read pasted text (email, chat export, note) from a file")
	extractCmd.Flags().StringVar(&imageFile, "image", "", "Recognize a recipe card or screenshot")
	importCmd.Flags().DurationVar(&pollInterval, "poll", time.Second, "Progress polling interval")

	rootCmd.AddCommand(detectCmd, extractCmd, importCmd)
}

func build(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Logging.Level = slog.LevelDebug
	}
	cfg.Logging.Format = "text"
	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func parsePlatform() (models.Platform, error) {
	if platformName == "" {
		return "", nil
	}
	p, ok := models.ParsePlatform(platformName)
	if !ok {
		return "", fmt.Errorf("unknown platform %q", platformName)
	}
	return p, nil
}

func describe(err error) error {
	var e *extraction.Error
	if errors.As(err, &e) && e.Kind == extraction.KindRateLimited && e.RetryAfter > 0 {
		return fmt.Errorf("%w (retry in %ds)", err, e.RetryAfterSeconds())
	}
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
