package jsonrepair

import (
	"strings"

	"github.com/ternarybob/minuta/internal/models"
)

// ExtractSummaryFields maps a parsed model document onto the typed per-pass
// field set. Key lookups are tolerant: models occasionally emit strings
// where arrays were requested and vice versa, so each group is coerced
// individually and absent groups stay zero.
func ExtractSummaryFields(doc map[string]interface{}) models.SummaryFields {
	fields := models.SummaryFields{}
	if doc == nil {
		return fields
	}

	fields.Summary = stringValue(doc, "summary")
	fields.Notes = stringValue(doc, "detailed_notes")
	fields.Speakers = speakerMap(doc["speakers"])
	fields.ActionItems = actionItems(doc["action_items"])
	fields.Decisions = stringList(doc["key_decisions"])

	return fields
}

func stringValue(doc map[string]interface{}, key string) string {
	if s, ok := doc[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func speakerMap(value interface{}) map[string]string {
	raw, ok := value.(map[string]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	speakers := make(map[string]string, len(raw))
	for label, name := range raw {
		if s, ok := name.(string); ok && s != "" {
			speakers[label] = s
		}
	}
	if len(speakers) == 0 {
		return nil
	}
	return speakers
}

func actionItems(value interface{}) []models.ActionItem {
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var items []models.ActionItem
	for _, entry := range list {
		switch v := entry.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				items = append(items, models.ActionItem{Description: s})
			}
		case map[string]interface{}:
			item := models.ActionItem{
				Description: stringValue(v, "description"),
				Owner:       stringValue(v, "owner"),
				DueDate:     stringValue(v, "due_date"),
			}
			// Some models use "task" or "item" for the description key
			if item.Description == "" {
				item.Description = stringValue(v, "task")
			}
			if item.Description == "" {
				item.Description = stringValue(v, "item")
			}
			if item.Description != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []interface{}:
		var out []string
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			}
		}
		return out
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return []string{trimmed}
		}
	}
	return nil
}
