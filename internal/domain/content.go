package domain

import "strings"

// Image upload constraints shared by the API and the client core.
const MaxImageBytes = 10 << 20 // 10MB

var supportedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// SupportedImageType reports whether the sniffed MIME type is accepted.
func SupportedImageType(mime string) bool {
	_, ok := supportedImageTypes[strings.ToLower(strings.TrimSpace(mime))]
	return ok
}

// PostOptions carries the user-selected knobs for one generation. All fields
// are free-form; empty values fall back to defaults at prompt-build time.
type PostOptions struct {
	PostType      string `json:"postType"`
	Tone          string `json:"tone"`
	Location      string `json:"location"`
	Context       string `json:"context"`
	CaptionLength string `json:"captionLength"`
	CaptionStyle  string `json:"captionStyle"`
	Locale        string `json:"locale,omitempty"`
}

// Normalize fills defaults for empty option fields.
func (o *PostOptions) Normalize(locale string) {
	if o.PostType == "" {
		o.PostType = "auto"
	}
	if o.Tone == "" {
		o.Tone = "casual"
	}
	if o.CaptionLength == "" {
		o.CaptionLength = "medium"
	}
	if o.CaptionStyle == "" {
		o.CaptionStyle = "engaging"
	}
	if o.Locale == "" {
		o.Locale = locale
	}
	if o.Locale == "" {
		o.Locale = "en"
	}
}

// PostContent is the canonical generation result, identical regardless of
// whether it came from the backend or the local fallback chain.
type PostContent struct {
	Caption     string   `json:"caption"`
	Hashtags    []string `json:"hashtags"`
	Suggestions []string `json:"suggestions"`
}
