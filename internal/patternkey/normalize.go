// Package patternkey enforces the canonical {source}_{indicator}_{cms}
// naming of signal pattern keys and audits batches for compliance.
package patternkey

import (
	"fmt"
	"strings"
)

// validSources is the closed source vocabulary of the naming convention.
var validSources = map[string]bool{
	"meta":   true,
	"header": true,
	"url":    true,
	"js":     true,
	"css":    true,
	"robots": true,
	"file":   true,
}

// normalizationMap fixes known legacy keys that predate the 3-part format.
var normalizationMap = map[string]string{
	// WordPress
	"robots_disallow_wp_admin":    "robots_disallow_wordpress",
	"url_wp_content_path":         "url_content_wordpress",
	"js_global_wp_emoji_settings": "js_emoji_wordpress",
	"file_wp_json_api":            "file_api_wordpress",
	"header_link_wordpress_api":   "header_api_wordpress",
	"header_powered_by_php":       "header_powered_by_wordpress",

	// Drupal
	"url_content_path_drupal_theme": "url_content_drupal",
	"robots_disallow_common_drupal": "robots_disallow_drupal",
	"js_global_drupal_settings":     "js_settings_drupal",

	// Joomla
	"url_media_content_path":    "url_content_joomla",
	"url_template_joomla_path":  "url_template_joomla",
	"js_global_joomla_jtext":    "js_jtext_joomla",
	"css_class_joomla_template": "css_template_joomla",

	// Duda
	"js_global_dm_api":                  "js_api_duda",
	"url_cdn_website":                   "url_cdn_duda",
	"file_js_runtime_flex_package":      "file_runtime_duda",
	"meta_og_type_website":              "meta_og_duda",
	"header_x_frame_options_sameorigin": "header_frame_duda",
}

// IsCanonical reports whether the key already follows
// {source}_{indicator}_{cms} with a known source.
func IsCanonical(key string) bool {
	parts := strings.Split(key, "_")
	return len(parts) == 3 && validSources[parts[0]]
}

// Normalize rewrites a pattern key into the canonical 3-part form for the
// given CMS. Keys that cannot be normalized are returned unchanged; callers
// decide whether to reject them.
func Normalize(key, cms string) string {
	if mapped, ok := normalizationMap[key]; ok {
		return mapped
	}
	if IsCanonical(key) {
		return key
	}

	parts := strings.Split(key, "_")
	if len(parts) < 4 || !validSources[parts[0]] {
		return key
	}

	source := parts[0]
	specificity := strings.ToLower(cms)

	// Collapse the middle parts into the indicator; the trailing part is
	// dropped when it already names the CMS.
	indicatorParts := parts[1:]
	if strings.EqualFold(parts[len(parts)-1], cms) {
		indicatorParts = parts[1 : len(parts)-1]
	}
	indicator := strings.Join(indicatorParts, "_")

	switch {
	case strings.Contains(indicator, "wp_content"):
		indicator = "content"
	case strings.Contains(indicator, "global_wp_emoji"):
		indicator = "emoji"
	case strings.Contains(indicator, "wp_json"):
		indicator = "api"
	case strings.Contains(indicator, "drupal_settings"):
		indicator = "settings"
	}

	return fmt.Sprintf("%s_%s_%s", source, indicator, specificity)
}

// ComplianceIssue describes one non-compliant key.
type ComplianceIssue struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// ComplianceReport summarizes a batch audit.
type ComplianceReport struct {
	Compliant    []string          `json:"compliant"`
	NonCompliant []ComplianceIssue `json:"non_compliant"`
	Rate         float64           `json:"rate"`
}

// AuditCompliance checks a batch of keys against the naming convention.
func AuditCompliance(keys []string) ComplianceReport {
	report := ComplianceReport{}
	for _, key := range keys {
		parts := strings.Split(key, "_")
		switch {
		case len(parts) != 3:
			report.NonCompliant = append(report.NonCompliant, ComplianceIssue{
				Key:    key,
				Reason: fmt.Sprintf("has %d parts, need 3", len(parts)),
			})
		case !validSources[parts[0]]:
			report.NonCompliant = append(report.NonCompliant, ComplianceIssue{
				Key:    key,
				Reason: fmt.Sprintf("invalid source %q", parts[0]),
			})
		default:
			report.Compliant = append(report.Compliant, key)
		}
	}
	if len(keys) > 0 {
		report.Rate = float64(len(report.Compliant)) / float64(len(keys))
	}
	return report
}
