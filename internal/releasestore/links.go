package releasestore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LegacyDelimiter separates relation types and URLs in rows written before
// links were stored as JSON.
const LegacyDelimiter = "\u200b"

// EncodeLinks serializes links for the urls column. No links encode as the
// empty string.
func EncodeLinks(links []Link) (string, error) {
	if len(links) == 0 {
		return "", nil
	}
	data, err := json.Marshal(links)
	if err != nil {
		return "", fmt.Errorf("encode links: %w", err)
	}
	return string(data), nil
}

// DecodeLinks parses a urls column value in either the JSON or legacy flat form.
func DecodeLinks(value string) ([]Link, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	if strings.HasPrefix(strings.TrimSpace(value), "[") {
		var links []Link
		if err := json.Unmarshal([]byte(value), &links); err != nil {
			return nil, fmt.Errorf("decode links: %w", err)
		}
		if len(links) == 0 {
			return nil, nil
		}
		return links, nil
	}
	return decodeLegacyLinks(value)
}

func decodeLegacyLinks(value string) ([]Link, error) {
	parts := strings.Split(value, LegacyDelimiter)
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("decode legacy links: odd field count %d", len(parts))
	}
	links := make([]Link, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		links = append(links, Link{RelationType: parts[i], URL: parts[i+1]})
	}
	return links, nil
}

// EncodeLegacyLinks renders links in the flat delimiter form. It exists for
// exporting to consumers that still split on LegacyDelimiter.
func EncodeLegacyLinks(links []Link) (string, error) {
	fields := make([]string, 0, len(links)*2)
	for _, link := range links {
		if strings.Contains(link.RelationType, LegacyDelimiter) || strings.Contains(link.URL, LegacyDelimiter) {
			return "", fmt.Errorf("encode legacy links: value contains delimiter: %q", link.URL)
		}
		fields = append(fields, link.RelationType, link.URL)
	}
	return strings.Join(fields, LegacyDelimiter), nil
}
