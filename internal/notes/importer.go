package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/jobs"
	"github.com/mealvault/mealvault/internal/models"
)

// Extractor is the dispatcher surface note imports use.
type Extractor interface {
	ExtractText(ctx context.Context, platform models.Platform, text string, meta map[string]string) (*extraction.Result, error)
	ExtractImage(ctx context.Context, image []byte, opts extraction.OCROptions) (*extraction.Result, error)
}

// ImportRequest selects the notes to import. Either Token or AuthCode must
// be set, and either NotebookID or NoteIDs.
type ImportRequest struct {
	Platform   models.Platform `json:"platform"`
	Token      string          `json:"token,omitempty"`
	AuthCode   string          `json:"authCode,omitempty"`
	NotebookID string          `json:"notebookId,omitempty"`
	NoteIDs    []string        `json:"noteIds,omitempty"`
	// ScanImages runs text recognition on a note's first image when its text
	// holds no recipe.
	ScanImages bool   `json:"scanImages,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Importer turns notes into an import job.
type Importer struct {
	client    NoteStoreClient
	extractor Extractor
	tracker   *jobs.Tracker
	sink      jobs.ResultSink
	logger    *slog.Logger
}

// NewImporter creates an importer. sink may be nil.
func NewImporter(client NoteStoreClient, extractor Extractor, tracker *jobs.Tracker, sink jobs.ResultSink, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{client: client, extractor: extractor, tracker: tracker, sink: sink, logger: logger}
}

// Import resolves the token and note list, then starts a job with one item
// per note. Failures before the job starts are returned directly.
func (i *Importer) Import(ctx context.Context, req ImportRequest) (string, error) {
	if req.Platform != models.PlatformAppleNotes && req.Platform != models.PlatformEvernote {
		return "", &extraction.Error{Kind: extraction.KindUnsupportedPlatform, Message: fmt.Sprintf("%q is not a note platform", req.Platform)}
	}
	if req.NotebookID == "" && len(req.NoteIDs) == 0 {
		return "", &extraction.Error{Kind: extraction.KindInvalidInput, Message: "notebookId or noteIds is required"}
	}

	token := req.Token
	if token == "" {
		if req.AuthCode == "" {
			return "", &extraction.Error{Kind: extraction.KindInvalidInput, Message: "token or authCode is required"}
		}
		t, err := i.client.ExchangeToken(ctx, req.AuthCode)
		if err != nil {
			return "", err
		}
		token = t.AccessToken
	}

	refs := make([]NoteRef, 0, len(req.NoteIDs))
	for _, id := range req.NoteIDs {
		refs = append(refs, NoteRef{ID: id, Title: id})
	}
	if len(refs) == 0 {
		listed, err := i.client.ListNotes(ctx, token, req.NotebookID)
		if err != nil {
			return "", err
		}
		refs = listed
	}
	if len(refs) == 0 {
		return "", &extraction.Error{Kind: extraction.KindInsufficientData, Message: "notebook has no notes"}
	}

	items := make([]jobs.Item, 0, len(refs))
	for _, ref := range refs {
		label := ref.Title
		if label == "" {
			label = ref.ID
		}
		items = append(items, jobs.Item{
			Label:    label,
			Platform: req.Platform,
			Process:  func(ctx context.Context, jobID string) error {
				return i.importNote(ctx, req, token, ref.ID, jobID)
			},
		})
	}

	jobID, err := i.tracker.CreateImport(ctx, items)
	if err != nil {
		return "", err
	}
	i.logger.Info("note import started", "job_id", jobID, "platform", req.Platform, "notes", len(items))
	return jobID, nil
}

func (i *Importer) importNote(ctx context.Context, req ImportRequest, token, noteID, jobID string) error {
	note, err := i.client.GetNote(ctx, token, noteID)
	if err != nil {
		return err
	}

	meta := map[string]string{
		"title":       note.Title,
		"contentType": "text/html",
		"sourceUrl":   note.SourceURL,
		"jobId":       jobID,
	}
	res, err := i.extractor.ExtractText(ctx, req.Platform, note.Content, meta)
	// An empty or recipe-less body may still carry a photographed recipe card.
	if kind := extraction.KindOf(err); kind == extraction.KindInsufficientData || kind == extraction.KindInvalidInput {
		if scanned, scanErr := i.scanImages(ctx, req, token, note); scanned != nil {
			res, err = scanned, nil
		} else if scanErr != nil {
			i.logger.Debug("note image scan failed", "note_id", noteID, "error", scanErr)
		}
	}
	if err != nil {
		return err
	}

	if res.Recipe.Title == "" {
		res.Recipe.Title = note.Title
	}
	if i.sink != nil {
		return i.sink(ctx, jobID, res)
	}
	return nil
}

// scanImages recognizes the first image attachment. It returns nil, nil when
// scanning is off or the note has no images.
func (i *Importer) scanImages(ctx context.Context, req ImportRequest, token string, note *Note) (*extraction.Result, error) {
	if !req.ScanImages {
		return nil, nil
	}
	for _, r := range note.Resources {
		if !r.IsImage() {
			continue
		}
		data, err := i.client.GetResource(ctx, token, note.ID, r.ID)
		if err != nil {
			return nil, err
		}
		lang := req.Language
		if lang == "" {
			lang = "en"
		}
		return i.extractor.ExtractImage(ctx, data, extraction.OCROptions{Language: lang, ConfidenceThreshold: 50})
	}
	return nil, nil
}
