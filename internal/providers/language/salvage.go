package language

import (
	"encoding/json"
	"errors"
	"strings"

	"instacap/internal/domain"
)

type modelPostPayload struct {
	Caption     string   `json:"caption"`
	Hashtags    []string `json:"hashtags"`
	Suggestions []string `json:"suggestions"`
}

// parsePostPayload decodes the model reply, tolerating code fences and
// leading/trailing prose around the JSON object.
func parsePostPayload(raw string) (*modelPostPayload, error) {
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return nil, errors.New("empty payload")
	}
	var decoded modelPostPayload
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return nil, err
	}
	if strings.TrimSpace(decoded.Caption) == "" {
		return nil, errors.New("payload missing caption")
	}
	return &decoded, nil
}

// Salvage wraps a reply that failed JSON parsing into a degraded but usable
// result: the raw text becomes the caption, hashtags fall back to a generic
// set for the post type. A malformed reply should not cost the user their
// generation.
func Salvage(raw string, opts domain.PostOptions) *domain.PostContent {
	caption := strings.TrimSpace(extractJSONFragment(raw))
	if caption == "" {
		caption = strings.TrimSpace(raw)
	}
	caption = strings.Trim(caption, "{}\"")
	return &domain.PostContent{
		Caption:     caption,
		Hashtags:    genericHashtags(opts.PostType),
		Suggestions: []string{"Post during peak hours for your audience", "Engage with comments in the first hour", "Keep your first line attention-grabbing"},
	}
}

var hashtagsByPostType = map[string][]string{
	"lifestyle": {"lifestyle", "dailylife", "goodvibes", "instadaily", "photooftheday"},
	"food":      {"food", "foodie", "instafood", "foodphotography", "yummy"},
	"travel":    {"travel", "wanderlust", "travelgram", "explore", "adventure"},
	"fashion":   {"fashion", "style", "ootd", "fashionista", "instastyle"},
	"business":  {"business", "entrepreneur", "motivation", "success", "hustle"},
	"nature":    {"nature", "naturephotography", "outdoors", "landscape", "earth"},
	"art":       {"art", "artist", "artwork", "creative", "instaart"},
}

func genericHashtags(postType string) []string {
	if tags, ok := hashtagsByPostType[strings.ToLower(postType)]; ok {
		return append([]string{"instagood", "picoftheday"}, tags...)
	}
	return []string{"instagood", "picoftheday", "photooftheday", "instadaily", "love"}
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
