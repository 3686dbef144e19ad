package adlibrary

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"adangle-backend/internal/models"
)

// ParseAds maps raw SearchAPI ads to candidates in response order. Ads without
// an identifier are dropped.
func ParseAds(raw []map[string]interface{}) []models.ReferenceCandidate {
	out := make([]models.ReferenceCandidate, 0, len(raw))
	for _, ad := range raw {
		c, ok := ParseAd(ad)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func ParseAd(ad map[string]interface{}) (models.ReferenceCandidate, bool) {
	id := firstString(ad, "ad_archive_id", "archive_id", "id")
	if id == "" {
		return models.ReferenceCandidate{}, false
	}
	snapshot, _ := ad["snapshot"].(map[string]interface{})

	c := models.ReferenceCandidate{
		AdID:          id,
		PageID:        firstString(ad, "page_id"),
		PageName:      firstString(ad, "page_name"),
		Text:          adText(ad, snapshot),
		DeliveryStart: timestamp(ad["start_date"]),
		DeliveryEnd:   timestamp(ad["end_date"]),
		ImageURL:      imageURL(ad, snapshot),
	}
	if c.PageID == "" {
		c.PageID = "unknown"
	}
	if c.PageName == "" && snapshot != nil {
		c.PageName = firstString(snapshot, "page_name")
	}
	if active, ok := ad["is_active"].(bool); ok {
		c.IsActive = &active
	}
	return c, true
}

func adText(ad, snapshot map[string]interface{}) string {
	if snapshot != nil {
		switch body := snapshot["body"].(type) {
		case map[string]interface{}:
			if s := firstString(body, "text"); s != "" {
				return s
			}
		case string:
			if s := strings.TrimSpace(body); s != "" {
				return s
			}
		}
	}
	return firstString(ad, "body_text", "link_description")
}

func imageURL(ad, snapshot map[string]interface{}) string {
	if snapshot != nil {
		for _, key := range []string{"images", "cards"} {
			list, _ := snapshot[key].([]interface{})
			if len(list) == 0 {
				continue
			}
			switch first := list[0].(type) {
			case map[string]interface{}:
				if s := firstString(first, "resized_image_url", "original_image_url"); s != "" {
					return s
				}
			case string:
				if key == "images" && first != "" {
					return first
				}
			}
		}
	}
	return firstString(ad, "image_url", "thumbnail")
}

// timestamp accepts ISO strings as-is and converts unix seconds to RFC 3339.
func timestamp(v interface{}) string {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		if n, err := strconv.ParseInt(t, 10, 64); err == nil && n > 0 {
			return time.Unix(n, 0).UTC().Format(time.RFC3339)
		}
		return t
	case float64:
		if t > 0 && !math.IsInf(t, 0) {
			return time.Unix(int64(t), 0).UTC().Format(time.RFC3339)
		}
	}
	return ""
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}
