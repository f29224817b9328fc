package language

import (
	"fmt"
	"strings"

	"instacap/internal/domain"
	"instacap/internal/providers/vision"
)

// CaptionRequest bundles everything the language model needs for one post.
type CaptionRequest struct {
	Options  domain.PostOptions
	Analysis vision.Analysis
}

var captionLengthHints = map[string]string{
	"short":  "50-80 words",
	"medium": "100-150 words",
	"long":   "150-250 words",
}

var captionStyleHints = map[string]string{
	"engaging":     "end with an engaging question for followers",
	"storytelling": "tell a short story around the moment",
	"informative":  "weave in one or two interesting facts",
	"motivational": "build it around an uplifting thought or quote",
	"personal":     "write it as a personal feeling, first person",
}

// buildCaptionPrompt assembles the deterministic instruction sent to the
// language model. Same inputs, same prompt.
func buildCaptionPrompt(req CaptionRequest) string {
	opts := req.Options
	locale := opts.Locale
	if locale == "" {
		locale = "en"
	}
	lengthHint := captionLengthHints[opts.CaptionLength]
	if lengthHint == "" {
		lengthHint = captionLengthHints["medium"]
	}

	sb := &strings.Builder{}
	sb.WriteString("You write Instagram posts. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"caption":string,"hashtags":string[],"suggestions":string[]}`)
	fmt.Fprintf(sb, ". Write the caption in locale '%s', %s, tone '%s'", locale, lengthHint, opts.Tone)
	if hint := captionStyleHints[opts.CaptionStyle]; hint != "" {
		fmt.Fprintf(sb, ", and %s", hint)
	}
	sb.WriteString(". ")
	if opts.PostType != "" && opts.PostType != "auto" {
		fmt.Fprintf(sb, "The post is about %s. ", opts.PostType)
	}
	if opts.Location != "" {
		fmt.Fprintf(sb, "It was taken at %s. ", opts.Location)
	}
	if opts.Context != "" {
		fmt.Fprintf(sb, "Extra context from the author: %s. ", opts.Context)
	}
	if summary := req.Analysis.Summary(); summary != "" {
		fmt.Fprintf(sb, "The image shows: %s. ", summary)
	}
	if req.Analysis.Text != "" {
		fmt.Fprintf(sb, "Text visible in the image: %q. ", firstLine(req.Analysis.Text))
	}
	if req.Analysis.FaceCount > 0 {
		fmt.Fprintf(sb, "There are %d people in the shot. ", req.Analysis.FaceCount)
	}
	sb.WriteString("Return 10 to 15 hashtags ordered from most to least popular, without duplicates, ")
	sb.WriteString("and exactly 3 short suggestions to improve the post's reach.")
	return sb.String()
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
