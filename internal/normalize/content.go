package normalize

import (
	"strings"

	"github.com/bimmerbailey/convolog/internal/event"
)

// partSeparator joins the text parts of list content.
const partSeparator = "\n\n"

// parseContent converts message content to display text plus attachments.
func parseContent(v any) (string, []event.Attachment) {
	switch c := v.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	case []any:
		return parseContentList(c)
	case map[string]any:
		return event.MarshalText(c), nil
	default:
		return stringify(c), nil
	}
}

func parseContentList(items []any) (string, []event.Attachment) {
	var parts []string
	var attachments []event.Attachment

	for _, item := range items {
		switch it := item.(type) {
		case string:
			parts = append(parts, it)
		case []any:
			parts = append(parts, event.MarshalText(it))
		case map[string]any:
			kind, _ := it["type"].(string)
			kind = strings.ToLower(kind)

			switch {
			case kind == "input_text" || kind == "output_text" || kind == "text":
				if s, ok := it["text"].(string); ok {
					parts = append(parts, s)
				} else if s, ok := it["content"].(string); ok {
					parts = append(parts, s)
				} else {
					parts = append(parts, event.MarshalText(it))
				}
			case strings.Contains(kind, "image"):
				if att, ok := imageAttachment(it); ok {
					attachments = append(attachments, att)
				}
			default:
				if s, ok := it["text"].(string); ok {
					parts = append(parts, s)
				} else if s, ok := it["content"].(string); ok {
					parts = append(parts, s)
				} else {
					parts = append(parts, event.MarshalText(it))
				}
			}
		}
	}

	return strings.Join(parts, partSeparator), attachments
}

// imageAttachment builds an attachment from an image content item. The URL
// comes from image_url (a string or an object with a url field) or url, and
// must pass the attachment allow-list.
func imageAttachment(item map[string]any) (event.Attachment, bool) {
	url := imageURL(item["image_url"])
	if url == "" {
		url = imageURL(item["url"])
	}
	if url == "" || !event.AllowedAttachmentURL(url) {
		return event.Attachment{}, false
	}

	att := event.Attachment{Kind: event.AttachmentImage, URL: url}
	if alt, ok := item["alt"].(string); ok {
		att.Alt = alt
	}
	return att, true
}

func imageURL(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		s, _ := t["url"].(string)
		return s
	default:
		return ""
	}
}
