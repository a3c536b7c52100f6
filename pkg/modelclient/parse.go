/**
 * @description
 * Response-shape extraction for the chat-completions payload. Providers
 * return the generated image in one of several shapes: an explicit image
 * list, a multi-part content array, or a plain string that may embed a JSON
 * image descriptor or a markdown image link. Each shape has a typed extractor
 * and they are tried in fixed priority order.
 */
package modelclient

import (
	"encoding/json"
	"regexp"
)

// Result is the generated output of one image-generation call. Both fields
// may be empty when the provider returned an unrecognized shape; that is a
// degraded result, not an error.
type Result struct {
	Content  string
	ImageURL string
}

var markdownImagePattern = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)

// imageEntry is one element of the explicit image list. The provider emits
// either an object wrapping a URL or a bare string.
type imageEntry struct {
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// typedPart is one element of a multi-part content array.
type typedPart struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Source struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"source"`
}

// ExtractResult runs the extractor chain over the raw message fields.
// Precedence: explicit image list, then multi-part content, then string
// content with embedded JSON or markdown image syntax.
func ExtractResult(images, content json.RawMessage) *Result {
	// When the explicit image list matches, the content field is not
	// consulted at all.
	if url, ok := extractFromImageList(images); ok {
		return &Result{ImageURL: url}
	}

	if result, ok := extractFromParts(content); ok {
		return result
	}

	if result, ok := extractFromString(content); ok {
		return result
	}

	return &Result{}
}

func extractFromImageList(images json.RawMessage) (string, bool) {
	if len(images) == 0 {
		return "", false
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(images, &entries); err != nil || len(entries) == 0 {
		return "", false
	}

	first := entries[0]

	var entry imageEntry
	if err := json.Unmarshal(first, &entry); err == nil && entry.ImageURL.URL != "" {
		return entry.ImageURL.URL, true
	}

	var bare string
	if err := json.Unmarshal(first, &bare); err == nil && bare != "" {
		return bare, true
	}

	return "", false
}

func extractFromParts(content json.RawMessage) (*Result, bool) {
	if len(content) == 0 {
		return nil, false
	}

	var parts []typedPart
	if err := json.Unmarshal(content, &parts); err != nil {
		return nil, false
	}

	result := &Result{}
	for _, part := range parts {
		switch part.Type {
		case "text":
			result.Content += part.Text
		case "image":
			if part.Source.Type == "url" && part.Source.URL != "" {
				result.ImageURL = part.Source.URL
			}
		}
	}
	return result, true
}

func extractFromString(content json.RawMessage) (*Result, bool) {
	text, ok := decodeString(content)
	if !ok {
		return nil, false
	}

	result := &Result{Content: text}

	// The string itself may be a JSON image descriptor.
	var descriptor typedPart
	if err := json.Unmarshal([]byte(text), &descriptor); err == nil {
		if descriptor.Type == "image" && descriptor.Source.URL != "" {
			result.ImageURL = descriptor.Source.URL
			return result, true
		}
	}

	// Fall back to a markdown image link scan.
	if match := markdownImagePattern.FindStringSubmatch(text); len(match) > 1 && match[1] != "" {
		result.ImageURL = match[1]
	}

	return result, true
}

func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
