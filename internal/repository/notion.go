package repository

import (
	"context"
	"fmt"

	"talkbridge/internal/apperrors"
	"talkbridge/internal/model"
	"talkbridge/pkg/notion"
)

// Property names in the hosted talk database. The title column holds the
// message text, the checkbox is the acknowledgment flag.
const (
	talkLineProperty = "TalkLine"
	feedbackProperty = "IsFeedBack"
)

type NotionAPI interface {
	CreatePage(ctx context.Context, databaseID string, properties map[string]notion.Property) (*notion.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, query notion.DatabaseQuery) ([]notion.Page, error)
	UpdatePageProperties(ctx context.Context, pageID string, properties map[string]notion.Property) error
}

// NotionRecordRepository stores talk records as pages of one hosted
// database, mapping TalkRecord fields onto the TalkLine title and the
// IsFeedBack checkbox.
type NotionRecordRepository struct {
	api        NotionAPI
	databaseID string
}

func NewNotionRecordRepository(api NotionAPI, databaseID string) *NotionRecordRepository {
	return &NotionRecordRepository{
		api:        api,
		databaseID: databaseID,
	}
}

func (r *NotionRecordRepository) InsertRecord(ctx context.Context, text string) (string, error) {
	properties := map[string]notion.Property{
		talkLineProperty: {
			Title: []notion.RichText{
				{Type: "text", Text: &notion.TextContent{Content: text}},
			},
		},
		feedbackProperty: {
			Checkbox: notion.Bool(false),
		},
	}

	page, err := r.api.CreatePage(ctx, r.databaseID, properties)
	if err != nil {
		return "", fmt.Errorf("%w: create talk page: %w", apperrors.ErrStoreWrite, err)
	}

	return page.ID, nil
}

func (r *NotionRecordRepository) SelectOldestUnacknowledged(ctx context.Context) (*model.TalkRecord, error) {
	query := notion.DatabaseQuery{
		Filter: map[string]any{
			"and": []any{
				map[string]any{
					"property": talkLineProperty,
					"title":    map[string]any{"is_not_empty": true},
				},
				map[string]any{
					"property": feedbackProperty,
					"checkbox": map[string]any{"equals": false},
				},
			},
		},
		Sorts: []notion.Sort{
			{Timestamp: "created_time", Direction: "ascending"},
		},
		PageSize: 1,
	}

	pages, err := r.api.QueryDatabase(ctx, r.databaseID, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query talk database: %w", apperrors.ErrStoreRead, err)
	}

	if len(pages) == 0 {
		return nil, apperrors.ErrNoPendingRecord
	}

	record, err := pageToRecord(pages[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStoreRead, err)
	}

	return record, nil
}

func (r *NotionRecordRepository) UpdateAsAcknowledged(ctx context.Context, recordID string) error {
	properties := map[string]notion.Property{
		feedbackProperty: {
			Checkbox: notion.Bool(true),
		},
	}

	if err := r.api.UpdatePageProperties(ctx, recordID, properties); err != nil {
		return fmt.Errorf("%w: mark acknowledged: %w", apperrors.ErrStoreWrite, err)
	}

	return nil
}

// pageToRecord validates and converts at the adapter boundary, so the loose
// shape of the store payload never leaks into business logic.
func pageToRecord(page notion.Page) (*model.TalkRecord, error) {
	property, ok := page.Properties[talkLineProperty]
	if !ok || len(property.Title) == 0 {
		return nil, fmt.Errorf("page %s has no %s title", page.ID, talkLineProperty)
	}

	text := property.Title[0].PlainText
	if text == "" && property.Title[0].Text != nil {
		text = property.Title[0].Text.Content
	}

	if text == "" {
		return nil, fmt.Errorf("page %s has an empty %s title", page.ID, talkLineProperty)
	}

	acknowledged := false
	if flag, ok := page.Properties[feedbackProperty]; ok && flag.Checkbox != nil {
		acknowledged = *flag.Checkbox
	}

	return &model.TalkRecord{
		ID:           page.ID,
		Text:         text,
		Acknowledged: acknowledged,
		CreatedAt:    page.CreatedTime,
	}, nil
}
